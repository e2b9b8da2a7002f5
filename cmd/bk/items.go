package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/and161185/bookly/internal/model"
	"github.com/and161185/bookly/internal/resource"
)

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return model.NormalizeTags(strings.Split(s, ","))
}

func (c *cli) printItems(items []model.Item) {
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCATEGORY\tTAGS\tUPDATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.Name, it.Status, it.Category, strings.Join(it.Tags, ","), it.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func cmdItems(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("items")
	q := fs.String("q", "", "search name and description")
	status := fs.String("status", "all", "filter by status")
	page := fs.Int("page", resource.DefaultPage, "page")
	limit := fs.Int("limit", resource.DefaultLimit, "page size")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *status != "all" && !model.ItemStatus(*status).Valid() {
		return usageErr("items: unknown status %q", *status)
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	p, err := c.app.Items.List(ctx, *page, *limit)
	if err != nil {
		return err
	}
	shown := model.FilterItems(p.Data, *q, *status)
	if *asJSON {
		c.printJSON(shown)
		return nil
	}
	if len(shown) == 0 {
		fmt.Fprintln(c.stdout, "no items")
	} else {
		c.printItems(shown)
	}
	fmt.Fprintf(c.stdout, "page %d/%d, %d total\n", p.Page, max(p.TotalPages, 1), p.Total)
	return nil
}

func cmdItem(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("item")
	id := fs.String("id", "", "item id")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return usageErr("item: need -id")
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	it, err := c.app.Items.Get(ctx, model.ID(*id))
	if err != nil {
		return err
	}
	if *asJSON {
		c.printJSON(it)
		return nil
	}
	fmt.Fprintf(c.stdout, "%s  [%s]\n", it.Name, it.Status)
	if it.Description != "" {
		fmt.Fprintln(c.stdout, it.Description)
	}
	if it.Category != "" {
		fmt.Fprintf(c.stdout, "category: %s\n", it.Category)
	}
	if len(it.Tags) > 0 {
		fmt.Fprintf(c.stdout, "tags: %s\n", strings.Join(it.Tags, ", "))
	}
	fmt.Fprintf(c.stdout, "id: %s\ncreated: %s\nupdated: %s\n",
		it.ID, it.CreatedAt.Local().Format("2006-01-02 15:04"), it.UpdatedAt.Local().Format("2006-01-02 15:04"))
	return nil
}

func cmdItemAdd(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("item-add")
	name := fs.String("name", "", "name")
	desc := fs.String("desc", "", "description")
	status := fs.String("status", string(model.ItemActive), "status")
	category := fs.String("category", "", "category")
	tags := fs.String("tags", "", "comma-separated tags")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	it, err := c.app.Items.Create(ctx, model.CreateItemInput{
		Name:        strings.TrimSpace(*name),
		Description: *desc,
		Status:      model.ItemStatus(*status),
		Category:    *category,
		Tags:        splitTags(*tags),
	})
	if err != nil && it.ID == "" {
		return err
	}
	fmt.Fprintf(c.stdout, "created %s\n", it.ID)
	return err
}

func cmdItemEdit(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("item-edit")
	id := fs.String("id", "", "item id")
	name := fs.String("name", "", "name")
	desc := fs.String("desc", "", "description")
	status := fs.String("status", "", "status")
	category := fs.String("category", "", "category")
	tags := fs.String("tags", "", "comma-separated tags; empty clears")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return usageErr("item-edit: need -id")
	}

	// only flags given on the command line are sent
	var in model.UpdateItemInput
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			in.Name = name
		case "desc":
			in.Description = desc
		case "status":
			s := model.ItemStatus(*status)
			in.Status = &s
		case "category":
			in.Category = category
		case "tags":
			t := splitTags(*tags)
			in.Tags = &t
		}
	})
	if err := c.requireSession(); err != nil {
		return err
	}
	it, err := c.app.Items.Update(ctx, model.ID(*id), in)
	if err != nil && it.ID == "" {
		return err
	}
	fmt.Fprintf(c.stdout, "updated %s\n", it.ID)
	return err
}

func cmdItemRm(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("item-rm")
	id := fs.String("id", "", "item id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return usageErr("item-rm: need -id")
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	if err := c.app.Items.Delete(ctx, model.ID(*id)); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "deleted %s\n", *id)
	return nil
}

// cmdStats counts items per status across every page.
func cmdStats(ctx context.Context, c *cli, args []string) error {
	if err := parse(c.newFlags("stats"), args); err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	var all []model.Item
	for page := 1; ; page++ {
		p, err := c.app.Items.List(ctx, page, 100)
		if err != nil {
			return err
		}
		all = append(all, p.Data...)
		if page >= p.TotalPages {
			break
		}
	}
	counts := model.CountByStatus(all)
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "total\t%d\n", len(all))
	for _, s := range model.ItemStatuses {
		fmt.Fprintf(tw, "%s\t%d\n", s, counts[s])
	}
	return tw.Flush()
}
