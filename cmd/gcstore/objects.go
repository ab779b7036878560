package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gcstore/gcstore"
)

// objectsCmd groups object-level subcommands. Commands that take a bucket
// flag fall back to the client's default bucket when it is left empty.
func (a *app) objectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objects",
		Short: "Manage objects",
	}

	var bucket string
	cmd.PersistentFlags().StringVar(&bucket, "in", "", "bucket to operate in (default: configured default bucket)")

	cmd.AddCommand(&cobra.Command{
		Use:   "ls [PREFIX]",
		Short: "List objects",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := &gcstore.ObjectQuery{}
			if len(args) == 1 {
				q.Prefix = args[0]
			}
			for {
				page, err := a.client.ListObjects(cmd.Context(), bucket, q)
				if err != nil {
					return err
				}
				for _, o := range page.Items {
					fmt.Fprintf(cmd.OutOrStdout(), "%12d  %s\n", o.Size, o.Name)
				}
				if page.NextPageToken == "" {
					return nil
				}
				q.PageToken = page.NextPageToken
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get NAME [FILE]",
		Short: "Download an object to a file or stdout",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := a.client.DownloadObject(cmd.Context(), bucket, args[0], 0)
			if err != nil {
				return err
			}
			defer rc.Close()

			var out io.Writer = cmd.OutOrStdout()
			if len(args) == 2 {
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			_, err = io.Copy(out, rc)
			return err
		},
	})

	putCmd := &cobra.Command{
		Use:   "put FILE [NAME]",
		Short: "Upload a file, using a resumable upload for large content",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			name := args[0]
			if len(args) == 2 {
				name = args[1]
			}
			info, err := f.Stat()
			if err != nil {
				return err
			}

			var obj *gcstore.Object
			if info.Size() >= a.cfg.Upload.ResumableThreshold {
				up, err := a.client.NewResumableUploader(cmd.Context(), bucket, name, "", info.Size())
				if err != nil {
					return err
				}
				up.ChunkSize = a.cfg.Upload.ChunkSize
				obj, err = up.Upload(cmd.Context(), f)
				if err != nil {
					return err
				}
			} else {
				obj, err = a.client.UploadObject(cmd.Context(), bucket, name, "", f)
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes, generation %d)\n", obj.Name, obj.Size, obj.Generation)
			return nil
		},
	}
	cmd.AddCommand(putCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm NAME",
		Short: "Delete an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client.DeleteObject(cmd.Context(), bucket, args[0], 0)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cp SRC DST",
		Short: "Server-side copy an object within the bucket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.client.CopyObject(cmd.Context(), bucket, args[0], "", args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied to %s (generation %d)\n", o.Name, o.Generation)
			return nil
		},
	})

	return cmd
}
