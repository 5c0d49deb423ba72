package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgtree/modules/org/infrastructure/persistence"
	"github.com/iota-uz/orgtree/pkg/composables"
)

func readContext(cmd *cobra.Command, tenantID string) (context.Context, func(), error) {
	tenant, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --tenant: %w", err)
	}
	pool, err := connectDB(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	ctx := composables.WithPool(cmd.Context(), pool)
	ctx = composables.WithTenantID(ctx, tenant)
	return ctx, pool.Close, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDepthCmd() *cobra.Command {
	var tenantID string
	cmd := &cobra.Command{
		Use:   "depth <org-id>",
		Short: "Print the depth of an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid org id: %w", err)
			}
			ctx, done, err := readContext(cmd, tenantID)
			if err != nil {
				return err
			}
			defer done()

			depth, err := persistence.NewOrganizationRepository().Depth(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"id": id, "depth": depth})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant uuid")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newAncestorsCmd() *cobra.Command {
	var tenantID string
	cmd := &cobra.Command{
		Use:   "ancestors <org-id>",
		Short: "Print the untrimmed ancestor chain, nearest-first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid org id: %w", err)
			}
			ctx, done, err := readContext(cmd, tenantID)
			if err != nil {
				return err
			}
			defer done()

			ids, err := persistence.NewOrganizationRepository().AncestorIDs(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"id": id, "ancestors": ids})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant uuid")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newChildrenCmd() *cobra.Command {
	var (
		tenantID  string
		recursive bool
	)
	cmd := &cobra.Command{
		Use:   "children <org-id>",
		Short: "Print direct children or the whole descendant set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid org id: %w", err)
			}
			ctx, done, err := readContext(cmd, tenantID)
			if err != nil {
				return err
			}
			defer done()

			ids, err := persistence.NewOrganizationRepository().ChildIDs(ctx, id, recursive)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"id": id, "children": ids})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant uuid")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "include all descendants")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
