package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gcstore/gcstore"
)

// aclCmd groups access-control subcommands. Entities are given in canonical
// form: "allUsers", "allAuthenticatedUsers", or "{type}-{name}" such as
// "user-jane@doe.com".
func (a *app) aclCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Manage bucket and object access control",
	}

	var bucket, object string
	cmd.PersistentFlags().StringVar(&bucket, "in", "", "bucket to operate in (default: configured default bucket)")
	cmd.PersistentFlags().StringVar(&object, "object", "", "object name; operate on the bucket ACL when empty")

	printRule := func(cmd *cobra.Command, r *gcstore.ACLRule) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Entity, r.Role)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [ENTITY]",
		Short: "Show ACL entries, or one entity's entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				entity, err := gcstore.ParseEntity(args[0])
				if err != nil {
					return err
				}
				var rule *gcstore.ACLRule
				if object != "" {
					rule, err = a.client.GetObjectACL(ctx, bucket, object, entity, 0)
				} else {
					rule, err = a.client.GetBucketACL(ctx, bucket, entity)
				}
				if err != nil {
					return err
				}
				printRule(cmd, rule)
				return nil
			}

			var rules []gcstore.ACLRule
			var err error
			if object != "" {
				rules, err = a.client.ListObjectACLs(ctx, bucket, object)
			} else {
				rules, err = a.client.ListBucketACLs(ctx, bucket)
			}
			if err != nil {
				return err
			}
			for i := range rules {
				printRule(cmd, &rules[i])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set ENTITY ROLE",
		Short: "Grant ROLE (READER or OWNER) to ENTITY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := gcstore.ParseEntity(args[0])
			if err != nil {
				return err
			}
			role := gcstore.Role(args[1])
			var rule *gcstore.ACLRule
			if object != "" {
				rule, err = a.client.UpdateObjectACL(cmd.Context(), bucket, object, entity, role)
			} else {
				rule, err = a.client.CreateBucketACL(cmd.Context(), bucket, entity, role)
			}
			if err != nil {
				return err
			}
			printRule(cmd, rule)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ENTITY",
		Short: "Remove ENTITY's grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := gcstore.ParseEntity(args[0])
			if err != nil {
				return err
			}
			if object != "" {
				return a.client.DeleteObjectACL(cmd.Context(), bucket, object, entity)
			}
			return a.client.DeleteBucketACL(cmd.Context(), bucket, entity)
		},
	})

	return cmd
}
