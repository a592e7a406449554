package main

import (
	"fmt"

	"contact_hub/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.storage.Migrate(ctx); err != nil {
				return err
			}
			e.log.Info("Schema applied", "storage", e.cfg.Storage.Driver)
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	var tenantID, channel, name string

	cmd := &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Resolve a platform identifier to a contact, creating it if missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, ok := domain.ParseChannel(channel)
			if !ok {
				return fmt.Errorf("unsupported channel %q", channel)
			}

			ctx, cancel := signalContext()
			defer cancel()

			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			contact, err := e.services.Identity.Resolve(ctx, tenantID, ch, args[0], name)
			if err != nil {
				return err
			}
			return printJSON(contact)
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&channel, "channel", "", "whatsapp, instagram or messenger")
	cmd.Flags().StringVar(&name, "name", "", "display name for a new contact")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("channel")

	return cmd
}

func mergeCmd() *cobra.Command {
	var fromRaw, toRaw string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge the --from contact into the --to contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromID, err := uuid.Parse(fromRaw)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			toID, err := uuid.Parse(toRaw)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			e, err := setup(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			result, err := e.services.Merge.Merge(ctx, fromID, toID)
			if err != nil {
				if result != nil {
					_ = printJSON(result.Stats)
				}
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&fromRaw, "from", "", "contact id to retire")
	cmd.Flags().StringVar(&toRaw, "to", "", "contact id that survives")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
