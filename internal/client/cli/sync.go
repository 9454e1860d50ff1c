package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/session"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("Starting synchronization with the cloud replica...")

	out, err := c.syncer.Sync(ctx, session.Request{Reason: string(models.ReasonExplicit)})
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	c.io.Println()
	c.io.Println("✓ Synchronization completed successfully!")
	c.io.Println()
	c.io.Printf("Pushed:     %d operations\n", out.Pushed)
	c.io.Printf("Pulled:     %d operations\n", out.Pulled)
	c.io.Printf("Applied:    %d operations\n", out.Applied)
	if out.Deferred > 0 {
		c.io.Printf("Deferred:   %d (waiting for causal dependencies)\n", out.Deferred)
	}
	if out.Conflicts > 0 {
		c.io.Printf("Conflicts:  %d resolved automatically\n", out.Conflicts)
	}
	if out.Manual > 0 {
		c.io.Printf("Manual:     %d (run 'edgesync conflicts')\n", out.Manual)
	}
	if out.Compacted > 0 {
		c.io.Printf("Compacted:  %d journal entries\n", out.Compacted)
	}
	c.io.Printf("Traffic:    %d bytes out, %d bytes in\n", out.BytesOut, out.BytesIn)
	c.io.Printf("Duration:   %s\n", out.Duration().Round(time.Millisecond))
	if !out.PeerAcked {
		c.io.Println()
		c.io.Println("⚠️  Peer did not confirm the commit; unconfirmed operations will be resent.")
	}
	return nil
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Sync Status ===")
	c.io.Println()

	stats, err := c.store.PendingStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending stats: %w", err)
	}

	if stats.Depth == 0 {
		c.io.Println("✓ All local changes acknowledged by the cloud replica")
	} else {
		c.io.Printf("⚠️  Pending sync: %d operation(s), %d bytes\n", stats.Depth, stats.Bytes)
		c.io.Printf("Oldest pending: %s\n", stats.Oldest.Format(time.RFC3339))

		names := make([]string, 0, len(stats.Categories))
		for name := range stats.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cs := stats.Categories[name]
			c.io.Printf("  %-16s %d op(s), %d bytes\n", name, cs.Depth, cs.Bytes)
		}
	}

	conflicts, err := c.store.ManualConflicts(ctx)
	if err != nil {
		// не прерываем вывод статуса
		c.io.Printf("\nWarning: failed to get conflicts: %v\n", err)
	} else if len(conflicts) > 0 {
		c.io.Println()
		c.io.Printf("⚠️  %d item(s) need manual resolution. Run 'edgesync conflicts'.\n", len(conflicts))
	}

	if c.health == nil {
		return nil
	}
	c.io.Println()
	health, err := c.health.Health(ctx)
	if err != nil {
		c.io.Printf("Cloud replica: unreachable (%v)\n", err)
		return nil
	}
	c.io.Printf("Cloud replica: %s (%s)\n", health.ReplicaID, health.Status)
	if health.Version != "" {
		c.io.Printf("Cloud version: %s\n", health.Version)
	}
	return nil
}
