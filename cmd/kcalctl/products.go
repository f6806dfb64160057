package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"kcal/internal/core"
)

func (a *app) productsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List saved products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := a.journal.Products()
			return a.emit(list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No saved products")
					return
				}
				fmt.Fprintf(w, "%-36s  %-30s  %8s  %6s  %6s  %6s  %s\n", "ID", "PRODUCT", "KCAL", "CARBS", "PROT", "FAT", "PER")
				for _, p := range list {
					fmt.Fprintf(w, "%-36s  %-30s  %8.0f  %6.1f  %6.1f  %6.1f  %s\n",
						p.ID, p.Name, p.Kcal, p.Carbs, p.Protein, p.Fat, p.Per)
				}
			})
		},
	}

	var p core.Product
	add := &cobra.Command{
		Use:   "add",
		Short: "Save a product with its per-100g values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := a.journal.AddProduct(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.emit(saved, func(w io.Writer) {
				fmt.Fprintf(w, "Saved %s (%s per %s) as %s\n", saved.Name, formatKcal(saved.Kcal), saved.Per, saved.ID)
			})
		},
	}
	f := add.Flags()
	f.StringVar(&p.Name, "name", "", "product name")
	f.Float64Var(&p.Kcal, "kcal", 0, "calories per reference amount")
	f.Float64Var(&p.Carbs, "carbs", 0, "carbohydrates per reference amount")
	f.Float64Var(&p.Protein, "protein", 0, "protein per reference amount")
	f.Float64Var(&p.Fat, "fat", 0, "fat per reference amount")
	f.StringVar(&p.Per, "per", core.DefaultPer, "reference amount")
	_ = add.MarkFlagRequired("name")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a saved product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.journal.RemoveProduct(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.emit(map[string]string{"removed": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Removed product %s\n", args[0])
			})
		},
	}

	cmd.AddCommand(add, rm)
	return cmd
}
