package main

import (
	"fmt"
	"io"
	"os"

	"whisper/internal/hashtag"

	"github.com/spf13/cobra"
)

// tagsCmd ranks hashtags across text files (one document per file, stdin
// when none are given), optionally listing which files match a tag.
func tagsCmd() *cobra.Command {
	var (
		top    int
		filter string
	)

	cmd := &cobra.Command{
		Use:   "tags [files...]",
		Short: "Show the tag cloud for a set of text documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, docs, err := readDocs(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if filter != "" {
				if !hashtag.Valid(filter) {
					return fmt.Errorf("invalid tag %q", filter)
				}
				for _, i := range hashtag.Filter(docs, filter) {
					fmt.Fprintln(out, names[i])
				}
				return nil
			}

			for _, t := range hashtag.Aggregate(docs, top) {
				fmt.Fprintf(out, "%5d  #%s\n", t.Count, t.Name)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", hashtag.DefaultTopN, "number of tags to show (0 for all)")
	cmd.Flags().StringVar(&filter, "tag", "", "list documents containing this tag instead")
	return cmd
}

func readDocs(stdin io.Reader, paths []string) ([]string, []string, error) {
	if len(paths) == 0 {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, nil, fmt.Errorf("read stdin: %w", err)
		}
		return []string{"-"}, []string{string(b)}, nil
	}

	docs := make([]string, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", p, err)
		}
		docs = append(docs, string(b))
	}
	return paths, docs, nil
}
