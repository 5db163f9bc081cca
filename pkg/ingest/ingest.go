// Package ingest reads simulation input (orders and drivers) from CSV
// files, per §6.4. The standard library's encoding/csv is used directly:
// no ecosystem CSV library appears anywhere in this codebase's dependency
// pack, so there is no idiom to transplant here (see DESIGN.md).
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
)

var ordersHeader = []string{"order_id", "created_at", "pickup_lat", "pickup_lon", "dropoff_lat", "dropoff_lon", "merchant_id"}
var driversHeader = []string{"driver_id", "lat", "lon", "status", "max_capacity"}

// LoadOrders reads an orders CSV from path, per §6.4's column layout.
// merchant_id becomes the order's PickupID for clustering.
func LoadOrders(path string) ([]model.Order, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open orders file %s: %w", path, err)
	}
	defer f.Close()
	return readOrders(f)
}

func readOrders(r io.Reader) ([]model.Order, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read orders header: %w", err)
	}
	if err := checkHeader(header, ordersHeader); err != nil {
		return nil, err
	}

	var orders []model.Order
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read orders row: %w", err)
		}

		createdAt, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			return nil, fmt.Errorf("ingest: parse created_at %q: %w", row[1], err)
		}
		pickupLat, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: parse pickup_lat %q: %w", row[2], err)
		}
		pickupLon, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: parse pickup_lon %q: %w", row[3], err)
		}
		dropoffLat, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: parse dropoff_lat %q: %w", row[4], err)
		}
		dropoffLon, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: parse dropoff_lon %q: %w", row[5], err)
		}

		orders = append(orders, model.Order{
			ID:        row[0],
			CreatedAt: createdAt,
			Pickup:    model.Coordinate{Lat: pickupLat, Lon: pickupLon},
			Dropoff:   model.Coordinate{Lat: dropoffLat, Lon: dropoffLon},
			PickupID:  row[6],
			Status:    model.OrderRAW,
		})
	}
	return orders, nil
}

// LoadDrivers reads a drivers CSV from path, per §6.4's column layout.
func LoadDrivers(path string) ([]model.Driver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open drivers file %s: %w", path, err)
	}
	defer f.Close()
	return readDrivers(f)
}

func readDrivers(r io.Reader) ([]model.Driver, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read drivers header: %w", err)
	}
	if err := checkHeader(header, driversHeader); err != nil {
		return nil, err
	}

	var drivers []model.Driver
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read drivers row: %w", err)
		}

		lat, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: parse lat %q: %w", row[1], err)
		}
		lon, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: parse lon %q: %w", row[2], err)
		}
		capacity, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("ingest: parse max_capacity %q: %w", row[4], err)
		}

		drivers = append(drivers, model.Driver{
			ID:          row[0],
			Location:    model.Coordinate{Lat: lat, Lon: lon},
			Status:      model.DriverStatus(row[3]),
			MaxCapacity: capacity,
		})
	}
	return drivers, nil
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("ingest: expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("ingest: expected column %d to be %q, got %q", i, want[i], got[i])
		}
	}
	return nil
}
