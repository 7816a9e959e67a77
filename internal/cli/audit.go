package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/usexrp/agentwallet/internal/repository"
)

func newAuditCmd(app *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent gateway requests from the Redis audit list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.cfg.Redis.Addr == "" {
				return errors.New("redis.addr is not set; the audit trail is only in " + app.cfg.Audit.Dir)
			}

			client, err := repository.NewRedisClient(app.cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()

			repo := repository.NewRedisAuditRepo(client, app.cfg.Redis.AuditListKey, app.cfg.Redis.AuditListMax)
			entries, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list audit entries: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TIME\tMETHOD\tPATH\tSTATUS\tLATENCY\tTX")
			for _, e := range entries {
				tx, _ := e.Context["tx_hash"].(string)
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dms\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Method, e.Path, e.StatusCode, e.LatencyMs, tx)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries, newest first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}
