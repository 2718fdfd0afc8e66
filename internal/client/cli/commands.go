package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/client/query"
	"github.com/carnetapp/carnet/internal/client/services"
	"github.com/carnetapp/carnet/internal/common"
)

// Vehicles prints a one-line summary for each vehicle in display order.
func (a *App) Vehicles(ctx context.Context) error {
	items, err := a.svc.Vehicles(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No vehicles yet, try 'addvehicle'")
		return nil
	}
	for _, v := range items {
		fmt.Fprintf(a.out, "%s  %s %s (%d)  %d km\n", v.ID, v.Brand, v.Model, v.Year, v.CurrentMileage)
	}
	return nil
}

// AddVehicle interactively collects the fields for a new vehicle.
func (a *App) AddVehicle(ctx context.Context) error {
	brand, err := getSimpleText(a.reader, "Brand", a.out)
	if err != nil {
		return err
	}
	model, err := getSimpleText(a.reader, "Model", a.out)
	if err != nil {
		return err
	}
	vin, err := getSimpleText(a.reader, "VIN (optional)", a.out)
	if err != nil {
		return err
	}
	year, err := a.promptInt("Year (0 = unknown)")
	if err != nil {
		return err
	}
	mileage, err := a.promptInt("Current mileage")
	if err != nil {
		return err
	}

	v, err := a.svc.CreateVehicle(ctx, services.VehicleInput{
		Brand:          brand,
		Model:          model,
		VIN:            vin,
		Year:           year,
		CurrentMileage: mileage,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created vehicle %s\n", v.ID)
	return nil
}

// DeleteVehicle removes a vehicle and everything under it: maintenance
// logs, documents and their cached pages.
func (a *App) DeleteVehicle(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: delvehicle <vehicle-id>")
		return nil
	}
	if err := a.svc.DeleteVehicle(ctx, args[0]); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Fprintln(a.out, "No such vehicle")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}

// Logs prints the maintenance history of one vehicle, newest first. An
// optional second argument restricts the listing to one category.
func (a *App) Logs(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(a.out, "Usage: logs <vehicle-id> [periodic|repair|modification]")
		return nil
	}

	spec := query.Spec[models.MaintenanceLog]{
		Fetch: func(ctx context.Context) ([]models.MaintenanceLog, error) {
			return a.svc.LogsForVehicle(ctx, args[0])
		},
		Less: func(x, y models.MaintenanceLog) bool { return x.ServiceDate > y.ServiceDate },
		ID:   func(l models.MaintenanceLog) string { return l.ID },
	}
	if len(args) == 2 {
		category := models.LogCategory(args[1])
		spec.Where = func(l models.MaintenanceLog) bool { return l.Category == category }
	}

	items, err := query.Snapshot(ctx, spec)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No maintenance logs for this vehicle")
		return nil
	}
	for _, l := range items {
		day := time.UnixMilli(l.ServiceDate).Format("2006-01-02")
		fmt.Fprintf(a.out, "%s  %s  [%s] %s  %d km  %.2f\n",
			l.ID, day, l.Category, l.Title, l.Mileage, float64(l.CostCents)/100)
	}
	return nil
}

// AddLog interactively records one service on a vehicle.
func (a *App) AddLog(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: addlog <vehicle-id>")
		return nil
	}

	title, err := getSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	category, err := getSimpleText(a.reader, "Category (periodic|repair|modification)", a.out)
	if err != nil {
		return err
	}
	cost, err := a.promptCost("Cost (e.g. 49.99)")
	if err != nil {
		return err
	}
	mileage, err := a.promptInt("Mileage at service")
	if err != nil {
		return err
	}
	day, err := a.promptDate("Service date (YYYY-MM-DD, empty = today)")
	if err != nil {
		return err
	}
	notes, err := getSimpleText(a.reader, "Notes (optional)", a.out)
	if err != nil {
		return err
	}

	l, err := a.svc.CreateLog(ctx, services.LogInput{
		VehicleID:   args[0],
		Title:       title,
		Category:    models.LogCategory(category),
		CostCents:   cost,
		Mileage:     mileage,
		ServiceDate: day,
		Notes:       notes,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created log %s\n", l.ID)
	return nil
}

// Documents prints the documents attached to one vehicle.
func (a *App) Documents(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: docs <vehicle-id>")
		return nil
	}
	items, err := a.svc.DocumentsForVehicle(ctx, args[0])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No documents for this vehicle")
		return nil
	}
	for _, d := range items {
		expiry := "-"
		if d.ExpiryDate != 0 {
			expiry = time.UnixMilli(d.ExpiryDate).Format("2006-01-02")
		}
		fmt.Fprintf(a.out, "%s  [%s] %s  expires %s\n", d.ID, d.Type, d.Reference, expiry)
	}
	return nil
}

// Sync triggers one synchronization cycle with the backend.
func (a *App) Sync(ctx context.Context) error {
	if a.engine == nil {
		fmt.Fprintln(a.out, "No remote backend configured, running offline")
		return nil
	}
	if a.user == "" {
		fmt.Fprintln(a.out, "Log in before syncing")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.SyncTimeout)
	defer cancel()

	res, err := a.engine.Run(ctx)
	switch {
	case errors.Is(err, common.ErrSyncBusy):
		fmt.Fprintln(a.out, "A sync cycle is already running")
		return nil
	case errors.Is(err, common.ErrWipeInProgress):
		fmt.Fprintln(a.out, "Local data is being wiped, try again later")
		return nil
	case err != nil:
		return err
	}

	if res.Err != nil {
		fmt.Fprintf(a.out, "Sync failed: %s\n", res.Err.Error())
		return nil
	}
	fmt.Fprintf(a.out, "Sync done: pulled %d, pushed %d\n", res.Pulled, res.Pushed)
	return nil
}

// Status shows the current identity, sync phase and checkpoint.
func (a *App) Status(ctx context.Context) error {
	if a.user == "" {
		fmt.Fprintln(a.out, "User: not logged in")
	} else {
		fmt.Fprintf(a.out, "User: %s\n", a.user)
	}

	if a.engine == nil {
		fmt.Fprintln(a.out, "Sync: offline (no remote backend configured)")
		return nil
	}
	fmt.Fprintf(a.out, "Sync: %s\n", a.engine.Phase())

	if cp := a.state.Checkpoint(); cp == 0 {
		fmt.Fprintln(a.out, "Last sync: never")
	} else {
		fmt.Fprintf(a.out, "Last sync: %s\n", time.UnixMilli(cp).Format(time.RFC3339))
	}
	return nil
}

func (a *App) promptInt(prompt string) (int, error) {
	s, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// promptCost reads a decimal amount and converts it to cents.
func (a *App) promptCost(prompt string) (int64, error) {
	s, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(v * 100)), nil
}

// promptDate reads a YYYY-MM-DD day and returns it as epoch milliseconds.
// Empty input means today.
func (a *App) promptDate(prompt string) (int64, error) {
	s, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return models.NowMillis(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
