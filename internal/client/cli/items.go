package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/edgesync/internal/storage"
)

func (c *Cli) runPut(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("missing arguments. Usage: edgesync put <category> <id> [value]")
	}
	category, itemID := args[0], args[1]

	var value string
	if len(args) > 2 {
		value = args[2]
	} else {
		v, err := c.io.ReadInput("Value: ")
		if err != nil {
			return fmt.Errorf("failed to read value: %w", err)
		}
		value = v
	}

	op, err := c.store.Put(ctx, category, itemID, []byte(value))
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	c.io.Printf("✓ Saved %s/%s (seq %d)\n", category, itemID, op.Seq)
	c.io.Println("Run 'edgesync sync' to send it to the cloud replica.")
	return nil
}

func (c *Cli) runGet(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing item ID. Usage: edgesync get <id>")
	}
	itemID := args[0]

	value, item, err := c.store.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrItemNotFound) {
			return fmt.Errorf("item not found with ID: %s", itemID)
		}
		return fmt.Errorf("failed to get item: %w", err)
	}

	c.io.Printf("ID:       %s\n", item.ID)
	c.io.Printf("Category: %s\n", item.Category)
	if !item.UpdatedAt.IsZero() {
		c.io.Printf("Updated:  %s\n", item.UpdatedAt.Format(time.RFC3339))
	}
	c.io.Printf("Origin:   %s\n", item.Stamp.Origin)
	c.io.Println("Value:")
	if _, err := c.io.Write(value); err != nil {
		return fmt.Errorf("failed to write value: %w", err)
	}
	c.io.Println()
	return nil
}

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	var (
		itemID string
		yes    bool
	)
	for _, a := range args {
		switch a {
		case "-y", "--yes":
			yes = true
		default:
			itemID = a
		}
	}
	if itemID == "" {
		return fmt.Errorf("missing item ID. Usage: edgesync delete <id> [-y]")
	}

	if !yes {
		_, item, err := c.store.Get(ctx, itemID)
		if err != nil {
			if errors.Is(err, storage.ErrItemNotFound) {
				return fmt.Errorf("item not found with ID: %s", itemID)
			}
			return fmt.Errorf("failed to get item: %w", err)
		}

		c.io.Println("About to delete:")
		c.io.Printf("  ID:       %s\n", item.ID)
		c.io.Printf("  Category: %s\n", item.Category)
		c.io.Println()

		confirm, err := c.io.ReadInput("Are you sure you want to delete this item? (yes/no): ")
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if confirm != "yes" && confirm != "y" {
			c.io.Println("Deletion cancelled.")
			return nil
		}
	}

	if _, err := c.store.Delete(ctx, itemID); err != nil {
		if errors.Is(err, storage.ErrItemNotFound) {
			return fmt.Errorf("item not found with ID: %s", itemID)
		}
		return fmt.Errorf("failed to delete item: %w", err)
	}

	c.io.Println("✓ Item deleted.")
	return nil
}

func (c *Cli) runList(ctx context.Context, args []string) error {
	var category string
	if len(args) > 0 {
		category = args[0]
	}

	items, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	var n int
	for _, item := range items {
		if category != "" && item.Category != category {
			continue
		}
		if n == 0 {
			c.io.Printf("%-32s %-16s %-10s %s\n", "ID", "CATEGORY", "SIZE", "UPDATED")
		}
		updated := "-"
		if !item.UpdatedAt.IsZero() {
			updated = item.UpdatedAt.Format(time.RFC3339)
		}
		c.io.Printf("%-32s %-16s %-10d %s\n", item.ID, item.Category, len(item.Value), updated)
		n++
	}

	if n == 0 {
		c.io.Println("No items found.")
		return nil
	}
	c.io.Println()
	c.io.Printf("Total: %d\n", n)
	return nil
}
