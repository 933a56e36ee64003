package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"hospops/internal/models"
	"hospops/internal/orchestrator"
	"hospops/internal/repository"
	"hospops/internal/visit"
	"hospops/shared/audit"

	"github.com/spf13/cobra"
)

// entityOps adapts one controller to the commands.
type entityOps struct {
	list   func(ctx context.Context) (any, error)
	search func(ctx context.Context, q repository.Query) (any, error)
	get    func(ctx context.Context, id int64) (any, error)
	keys   func(ctx context.Context) ([]int64, error)
}

// visitOps adds the status actions of reception-like entities.
type visitOps struct {
	entityOps
	apply  func(ctx context.Context, id int64, action visit.Action, reason string) error
	cancel func(ctx context.Context, id int64, code, reason string) error
	trail  audit.TrailSource
}

func controllerOps[T orchestrator.Record](c *orchestrator.Controller[T]) entityOps {
	return entityOps{
		list: func(ctx context.Context) (any, error) {
			if err := c.FetchList(ctx).Wait(ctx); err != nil {
				return nil, err
			}
			return c.Snapshot().Items, nil
		},
		search: func(ctx context.Context, q repository.Query) (any, error) {
			if err := c.Search(ctx, q).Wait(ctx); err != nil {
				return nil, err
			}
			return c.Snapshot().Items, nil
		},
		get: func(ctx context.Context, id int64) (any, error) {
			if err := c.FetchOne(ctx, id).Wait(ctx); err != nil {
				return nil, err
			}
			return c.Snapshot().Selected, nil
		},
		keys: func(ctx context.Context) ([]int64, error) {
			if err := c.FetchList(ctx).Wait(ctx); err != nil {
				return nil, err
			}
			items := c.Snapshot().Items
			ids := make([]int64, 0, len(items))
			for _, item := range items {
				ids = append(ids, item.Key())
			}
			return ids, nil
		},
	}
}

// The status of a record must be known before an action is checked against
// the transition machine, so every action loads the record first.
func statusOps[T repository.VisitRecord](v *orchestrator.VisitController[T], trail audit.TrailSource) visitOps {
	return visitOps{
		entityOps: controllerOps(v.Controller),
		apply: func(ctx context.Context, id int64, action visit.Action, reason string) error {
			if err := v.FetchOne(ctx, id).Wait(ctx); err != nil {
				return err
			}
			return v.Apply(ctx, id, action, reason).Wait(ctx)
		},
		cancel: func(ctx context.Context, id int64, code, reason string) error {
			if err := v.FetchOne(ctx, id).Wait(ctx); err != nil {
				return err
			}
			return v.Cancel(ctx, id, code, reason).Wait(ctx)
		},
		trail: trail,
	}
}

func visitEntities(a *app) map[string]visitOps {
	h := a.hub
	return map[string]visitOps{
		repository.EntityReceptions:   statusOps(h.Receptions, a.repos.Receptions),
		repository.EntityReservations: statusOps(h.Reservations, a.repos.Reservations),
		repository.EntityEmergency:    statusOps(h.Emergency, a.repos.Emergency),
		repository.EntityInpatient:    statusOps(h.Inpatient, a.repos.Inpatient),
	}
}

func entities(a *app) map[string]entityOps {
	h := a.hub
	out := map[string]entityOps{
		repository.EntityPatients:    controllerOps(h.Patients),
		repository.EntityInsurances:  controllerOps(h.Insurances),
		repository.EntityConsents:    controllerOps(h.Consents),
		repository.EntityDepartments: controllerOps(h.Departments),
		repository.EntityPositions:   controllerOps(h.Positions),
		repository.EntityStaff:       controllerOps(h.Staff),
	}
	for name, v := range visitEntities(a) {
		out[name] = v.entityOps
	}
	return out
}

func names[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

func lookup[V any](m map[string]V, name string) (V, error) {
	v, ok := m[name]
	if !ok {
		var zero V
		return zero, fmt.Errorf("unknown entity %q (one of: %s)", name, names(m))
	}
	return v, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// withApp runs fn with a ready app and closes it afterwards.
func withApp(cmd *cobra.Command, configPath string, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func listCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <entity>",
		Short: "List the records of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				ops, err := lookup(entities(a), args[0])
				if err != nil {
					return err
				}
				items, err := ops.list(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}
}

func searchCmd(configPath *string) *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "search <entity> <value>",
		Short: "Search an entity by one field; an empty value lists everything",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := repository.Query{Field: field}
			if len(args) == 2 {
				q.Value = args[1]
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				ops, err := lookup(entities(a), args[0])
				if err != nil {
					return err
				}
				items, err := ops.search(ctx, q)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			})
		},
	}
	cmd.Flags().StringVarP(&field, "field", "f", "name", "field to search")
	return cmd
}

func getCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				ops, err := lookup(entities(a), args[0])
				if err != nil {
					return err
				}
				rec, err := ops.get(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func statusCmd(configPath *string) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "status <entity> <id> <action>",
		Short: "Apply a staff action (call, start, complete, bill, hold, requeue) to a visit",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				ops, err := lookup(visitEntities(a), args[0])
				if err != nil {
					return err
				}
				if err := ops.apply(ctx, id, visit.Action(args[2]), reason); err != nil {
					return err
				}
				rec, err := ops.get(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason text stored with the change")
	return cmd
}

func cancelCmd(configPath *string) *cobra.Command {
	var code, reason string
	cmd := &cobra.Command{
		Use:   "cancel <entity> <id>",
		Short: "Cancel a visit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				ops, err := lookup(visitEntities(a), args[0])
				if err != nil {
					return err
				}
				if err := ops.cancel(ctx, id, code, reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d canceled\n", args[0], id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "reason code")
	cmd.Flags().StringVar(&reason, "reason", "", "reason text")
	return cmd
}

func subresourceCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subresource",
		Short: "Visit specializations addressed by visit id",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "fetch <kind> <visit-id>",
		Short: "Fetch the specialization of a visit; prints null when there is none",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			visitID, err := parseID(args[1])
			if err != nil {
				return err
			}
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				if err := a.hub.Subresources.Fetch(ctx, kind, visitID).Wait(ctx); err != nil {
					return err
				}
				rec, _ := a.hub.Subresources.Lookup(kind, visitID)
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <kind> <visit-id>",
		Short: "Delete the specialization of a visit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			visitID, err := parseID(args[1])
			if err != nil {
				return err
			}
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				return a.hub.DeleteSpecialization(ctx, kind, visitID).Wait(ctx)
			})
		},
	})
	return cmd
}

func parseKind(s string) (models.Kind, error) {
	for _, k := range models.Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q", s)
}
