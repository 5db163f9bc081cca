// Package model defines the domain types shared by the order queue, the
// batching engine, and the wave dispatcher: coordinates, orders, stops,
// jobs, and driver snapshots.
package model

import "time"

// Coordinate is a (latitude, longitude) pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OrderStatus is the lifecycle stage of an Order.
type OrderStatus string

const (
	OrderRAW       OrderStatus = "RAW"
	OrderBATCHING  OrderStatus = "BATCHING"
	OrderREADY     OrderStatus = "READY"
	OrderASSIGNED  OrderStatus = "ASSIGNED"
	OrderCANCELLED OrderStatus = "CANCELLED"
)

// Order is a customer delivery request.
type Order struct {
	ID        string
	Pickup    Coordinate
	Dropoff   Coordinate
	PickupID  string // optional merchant identity for clustering
	CreatedAt time.Time
	ReadyAt   *time.Time // optional; nil means unknown/unconstrained
	Status    OrderStatus
}

// Age returns how long ago the order was created, relative to now.
func (o Order) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// StopType distinguishes a pickup visit from a dropoff visit.
type StopType string

const (
	StopPickup  StopType = "PICKUP"
	StopDropoff StopType = "DROPOFF"
)

// Stop is a single, immutable visit within a Job's route.
type Stop struct {
	Type     StopType
	OrderID  string
	Coord    Coordinate
	PickupID string
}

// JobType classifies a Job by how many orders it bundles.
type JobType string

const (
	JobSingle JobType = "SINGLE"
	JobBatch  JobType = "BATCH"
)

// Job is a dispatchable work package: an ordered route covering one or more
// orders, satisfying the pickup-before-dropoff precedence invariant for
// every member order.
type Job struct {
	ID             string
	Type           JobType
	Stops          []Stop
	OrderIDs       []string
	ETASeconds     float64
	DetourFactor   float64
	SavingsSeconds float64
	CreatedAt      time.Time
}

// Size returns the number of orders bundled into the job.
func (j Job) Size() int {
	return len(j.OrderIDs)
}

// DriverStatus is the operational state of a courier.
type DriverStatus string

const (
	DriverAvailable        DriverStatus = "AVAILABLE"
	DriverTransitToCollect DriverStatus = "TRANSIT_TO_COLLECT"
	DriverTransitToDropoff DriverStatus = "TRANSIT_TO_DROPOFF"
	DriverPaused           DriverStatus = "PAUSED"
	DriverOffline          DriverStatus = "OFFLINE"
	DriverUnregistered     DriverStatus = "UNREGISTERED"
)

// Driver is an immutable-per-observation courier snapshot.
type Driver struct {
	ID          string
	Location    Coordinate
	Status      DriverStatus
	MaxCapacity int
	LastPingAt  time.Time
}

// WithAcceptance returns a copy of the driver reflecting a successful
// acceptance of a job requiring orderCount capacity slots, applying the
// transition rules from §4.4.4: drained to zero capacity always moves the
// driver to TRANSIT_TO_COLLECT; positive residual capacity only stays there
// if continuous chaining is enabled, otherwise the driver keeps its prior
// status (normally AVAILABLE).
func (d Driver) WithAcceptance(orderCount int, chainingEnabled bool) Driver {
	next := d
	next.MaxCapacity = d.MaxCapacity - orderCount
	switch {
	case next.MaxCapacity == 0:
		next.Status = DriverTransitToCollect
	case next.MaxCapacity > 0 && chainingEnabled:
		next.Status = DriverTransitToCollect
	default:
		next.Status = d.Status
	}
	return next
}

// WithBreakdown returns a copy of the driver reflecting an emergency
// withdrawal after having accepted a job: the driver goes OFFLINE
// unconditionally, per §4.4.4.
func (d Driver) WithBreakdown() Driver {
	next := d
	next.Status = DriverOffline
	return next
}
