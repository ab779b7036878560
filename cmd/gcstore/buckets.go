package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gcstore/gcstore"
)

// bucketsCmd groups bucket-level subcommands.
func (a *app) bucketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buckets",
		Short: "Manage buckets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List buckets in the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := a.project()
			if err != nil {
				return err
			}
			pageToken := ""
			for {
				page, err := a.client.ListBuckets(cmd.Context(), project, "", pageToken)
				if err != nil {
					return err
				}
				for _, b := range page.Items {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", b.Name, b.Location, b.StorageClass)
				}
				if page.NextPageToken == "" {
					return nil
				}
				pageToken = page.NextPageToken
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := a.project()
			if err != nil {
				return err
			}
			b, err := a.client.CreateBucket(cmd.Context(), project, &gcstore.Bucket{Name: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", b.Name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm NAME",
		Short: "Delete an empty bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client.DeleteBucket(cmd.Context(), args[0])
		},
	})

	return cmd
}
