package main

import (
	"fmt"
	"net/http"
	"sort"
	"text/tabwriter"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

// storefront routes
var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List all registered routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := routesHandler()
		if err != nil {
			return err
		}

		type route struct{ method, path string }
		var routes []route
		err = chi.Walk(r, func(method, path string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			routes = append(routes, route{method, path})
			return nil
		})
		if err != nil {
			return err
		}

		sort.Slice(routes, func(i, j int) bool {
			if routes[i].path != routes[j].path {
				return routes[i].path < routes[j].path
			}
			return routes[i].method < routes[j].method
		})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH")
		for _, rt := range routes {
			fmt.Fprintf(w, "%s\t%s\n", rt.method, rt.path)
		}
		return w.Flush()
	},
}
