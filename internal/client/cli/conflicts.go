package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/edgesync/internal/storage"
)

func (c *Cli) runConflicts(ctx context.Context) error {
	conflicts, err := c.store.ManualConflicts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		c.io.Println("No conflicts.")
		return nil
	}

	for _, mc := range conflicts {
		c.io.Printf("%s (%s)\n", mc.ItemID, mc.Category)
		c.io.Printf("  Detected: %s\n", mc.DetectedAt.Format(time.RFC3339))
		c.io.Printf("  Reason:   %s\n", mc.Reason)
		c.io.Printf("  Writes:   %d concurrent operation(s)\n", len(mc.OpIDs))
	}
	c.io.Println()
	c.io.Println("The current value was chosen by last-writer-wins.")
	c.io.Println("Run 'edgesync resolve <id>' to accept it or 'edgesync resolve <id> <value>' to replace it.")
	return nil
}

func (c *Cli) runResolve(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing item ID. Usage: edgesync resolve <id> [value]")
	}
	itemID := args[0]

	var value []byte
	if len(args) > 1 {
		value = []byte(args[1])
	}

	if err := c.store.ResolveManual(ctx, itemID, value); err != nil {
		if errors.Is(err, storage.ErrConflictNotFound) {
			return fmt.Errorf("no conflict for item: %s", itemID)
		}
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	if value == nil {
		c.io.Printf("✓ Kept current value of %s\n", itemID)
		return nil
	}
	c.io.Printf("✓ Replaced value of %s\n", itemID)
	c.io.Println("Run 'edgesync sync' to send the resolution to the cloud replica.")
	return nil
}
