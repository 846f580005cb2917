package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/wricardo/campus-charging-sim/campus/layout"
	"github.com/wricardo/campus-charging-sim/campus/routing"
	"github.com/wricardo/campus-charging-sim/campus/scheduler"
)

var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrNilCampus     = errors.New("campus is nil")
)

// simulation RNG stream, kept apart from the layout generator's stream
const simStream = 0x5eed_c1a5_51a7_e000

// DefaultGateSpawnProbabilities are the per-gate spawn chances for the first three gates
var DefaultGateSpawnProbabilities = []float64{0.5, 0.3, 0.2}

// Config holds the clock parameters and the robot roster
type Config struct {
	SpawnInterval          int
	GateSpawnProbabilities []float64
	MinParkingDuration     int
	MaxParkingDuration     int
	Policy                 scheduler.Policy
	AvailableStatuses      []RobotStatus
	// A robot at a station is re-tasked only once its battery reaches this level
	RechargeResumeLevel float64
	Robots              []RobotSpec
	Seed                uint64
}

// DefaultConfig returns the standard clock parameters with no robots
func DefaultConfig() Config {
	return Config{
		SpawnInterval:          DefaultSpawnInterval,
		GateSpawnProbabilities: append([]float64(nil), DefaultGateSpawnProbabilities...),
		MinParkingDuration:     DefaultMinParkingDuration,
		MaxParkingDuration:     DefaultMaxParkingDuration,
		Policy:                 scheduler.NearestTaskFirst,
		AvailableStatuses:      []RobotStatus{Idle, BeingCharged},
		RechargeResumeLevel:    DefaultResumeLevel,
	}
}

func (c Config) validate() error {
	if c.SpawnInterval < 0 {
		return fmt.Errorf("%w: spawn interval %d", ErrInvalidConfig, c.SpawnInterval)
	}
	if c.MinParkingDuration < 0 || c.MinParkingDuration > c.MaxParkingDuration {
		return fmt.Errorf("%w: parking duration [%d,%d]", ErrInvalidConfig, c.MinParkingDuration, c.MaxParkingDuration)
	}
	for i, p := range c.GateSpawnProbabilities {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: gate %d spawn probability %.2f", ErrInvalidConfig, i, p)
		}
	}
	seen := make(map[int]bool, len(c.Robots))
	for _, r := range c.Robots {
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate robot id %d", ErrInvalidConfig, r.ID)
		}
		seen[r.ID] = true
	}
	for _, st := range c.AvailableStatuses {
		if st != Idle && st != BeingCharged {
			return fmt.Errorf("%w: robot status %q cannot take tasks", ErrInvalidConfig, st)
		}
	}
	return nil
}

// Stats are cumulative counters since the last reset
type Stats struct {
	Spawned           int     `json:"spawned"`
	Exited            int     `json:"exited"`
	SpotBindingMisses int     `json:"spot_binding_misses"`
	Assignments       int     `json:"assignments"`
	StationDispatches int     `json:"station_dispatches"`
	ChargesCompleted  int     `json:"charges_completed"`
	TasksDropped      int     `json:"tasks_dropped"`
	EnergyDelivered   float64 `json:"energy_delivered"`
}

// TickReport lists what happened during one tick
type TickReport struct {
	Tick              int                  `json:"tick"`
	Spawned           []int                `json:"spawned,omitempty"`
	Exited            []int                `json:"exited,omitempty"`
	SpotMisses        []int                `json:"spot_misses,omitempty"`
	StationDispatches []int                `json:"station_dispatches,omitempty"`
	Assignment        scheduler.Assignment `json:"assignment,omitempty"`
	ChargesCompleted  []int                `json:"charges_completed,omitempty"`
	EnergyDelivered   float64              `json:"energy_delivered"`
}

// Option configures a Simulation
type Option func(*Simulation)

// WithLogger sets the simulation logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulation) {
		s.log = log
	}
}

// WithMeter sets the meter used for simulation counters
func WithMeter(m metric.Meter) Option {
	return func(s *Simulation) {
		s.meter = m
	}
}

// WithLaneRouter replaces the vehicle lane router
func WithLaneRouter(r routing.LaneRouter) Option {
	return func(s *Simulation) {
		s.lanes = r
	}
}

// WithFreeRouter replaces the robot router
func WithFreeRouter(r routing.FreeRouter) Option {
	return func(s *Simulation) {
		s.free = r
	}
}

// Simulation drives vehicles, robots and the scheduler one tick at a time.
// It is not safe for concurrent use; callers serialize access.
type Simulation struct {
	campus    Campus
	cfg       Config
	available scheduler.StatusSet
	lanes     routing.LaneRouter
	free      routing.FreeRouter
	log       zerolog.Logger
	meter     metric.Meter
	ins       *instruments

	rng           *rand.Rand
	tick          int
	nextVehicleID int
	spots         *SpotTable
	vehicles      []*Vehicle
	robots        []*ChargingRobot
	stats         Stats
}

// New creates a simulation at tick 0 over the campus
func New(campus Campus, cfg Config, opts ...Option) (*Simulation, error) {
	if campus == nil {
		return nil, ErrNilCampus
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Policy == nil {
		cfg.Policy = scheduler.NearestTaskFirst
	}

	s := &Simulation{
		campus: campus,
		cfg:    cfg,
		lanes:  routing.LoopRouter{},
		free:   routing.ManhattanRouter{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	statuses := make([]string, len(cfg.AvailableStatuses))
	for i, st := range cfg.AvailableStatuses {
		statuses[i] = string(st)
	}
	s.available = scheduler.NewStatusSet(statuses...)

	ins, err := newInstruments(s.meter)
	if err != nil {
		return nil, err
	}
	s.ins = ins

	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset returns the simulation to tick 0 with the configured seed and roster
func (s *Simulation) Reset() error {
	robots := make([]*ChargingRobot, 0, len(s.cfg.Robots))
	for _, spec := range s.cfg.Robots {
		r, err := NewChargingRobot(spec, s.campus.StationPositions(), s.free)
		if err != nil {
			return err
		}
		robots = append(robots, r)
	}

	if len(s.vehicles) > 0 {
		s.ins.activeVehicles.Add(context.Background(), -int64(len(s.vehicles)))
	}

	s.rng = rand.New(rand.NewPCG(s.cfg.Seed, simStream))
	s.tick = 0
	s.nextVehicleID = 1
	s.spots = NewSpotTable(s.campus.ParkingSpots())
	s.vehicles = nil
	s.robots = robots
	s.stats = Stats{}
	return nil
}

func (s *Simulation) env() *Env {
	return &Env{
		Campus: s.campus,
		Spots:  s.spots,
		Lanes:  s.lanes,
		Tick:   s.tick,
		Log:    s.log,
	}
}

// Tick advances the simulation by one step
func (s *Simulation) Tick() TickReport {
	ctx := context.Background()
	s.tick++
	report := TickReport{Tick: s.tick}
	env := s.env()

	if s.cfg.SpawnInterval > 0 && s.tick%s.cfg.SpawnInterval == 0 {
		s.spawn(env, &report)
	}

	active := s.vehicles[:0]
	for _, v := range s.vehicles {
		switch v.Update(env) {
		case VehicleSpotMiss:
			report.SpotMisses = append(report.SpotMisses, v.ID())
			s.stats.SpotBindingMisses++
			s.ins.spotMisses.Add(ctx, 1)
		case VehicleExited:
			report.Exited = append(report.Exited, v.ID())
			s.stats.Exited++
			s.ins.exited.Add(ctx, 1)
			s.ins.activeVehicles.Add(ctx, -1)
		}
		if v.State() != Exited {
			active = append(active, v)
		}
	}
	for i := len(active); i < len(s.vehicles); i++ {
		s.vehicles[i] = nil
	}
	s.vehicles = active

	s.dispatchToStations(&report)
	s.assignTasks(&report)

	for _, r := range s.robots {
		target := r.TargetVehicle()
		step := r.Update()
		if step.Delivered > 0 {
			report.EnergyDelivered += step.Delivered
			s.stats.EnergyDelivered += step.Delivered
			s.ins.energyDelivered.Add(ctx, step.Delivered)
		}
		switch step.Event {
		case RobotChargeComplete:
			report.ChargesCompleted = append(report.ChargesCompleted, target.ID())
			s.stats.ChargesCompleted++
			s.ins.chargesCompleted.Add(ctx, 1)
		case RobotTaskDropped:
			s.stats.TasksDropped++
			s.log.Debug().Int("robot", r.ID()).Msg("Robot dropped charging task")
		}
	}

	return report
}

func (s *Simulation) spawn(env *Env, report *TickReport) {
	ctx := context.Background()
	for i, gate := range s.campus.Gates() {
		if i >= len(s.cfg.GateSpawnProbabilities) || s.rng.Float64() >= s.cfg.GateSpawnProbabilities[i] {
			continue
		}
		free := s.spots.Unoccupied()
		if len(free) == 0 {
			continue
		}
		spot := s.spots.Spot(free[s.rng.IntN(len(free))])
		initial := randInt(s.rng, MinInitialBattery, MaxInitialBattery)

		spec := VehicleSpec{
			ID:              s.nextVehicleID,
			Gate:            gate,
			Target:          s.campus.AdjacentPosition(spot),
			ParkingDuration: randInt(s.rng, s.cfg.MinParkingDuration, s.cfg.MaxParkingDuration),
			SpawnTick:       s.tick,
			Clockwise:       s.rng.IntN(2) == 0,
			InitialBattery:  float64(initial),
			TargetBattery:   float64(randInt(s.rng, initial, int(FullBattery))),
		}
		v, err := NewVehicle(env, spec)
		if err != nil {
			s.log.Error().Err(err).Int("gate", i).Msg("Failed to spawn vehicle")
			continue
		}
		s.nextVehicleID++
		s.vehicles = append(s.vehicles, v)
		report.Spawned = append(report.Spawned, v.ID())
		s.stats.Spawned++
		s.ins.spawned.Add(ctx, 1)
		s.ins.activeVehicles.Add(ctx, 1)
		s.log.Debug().Int("vehicle", v.ID()).Int("gate", i).Interface("target", spec.Target).Msg("Vehicle spawned")
	}
}

// dispatchToStations sends idle robots at or below their threshold to recharge
func (s *Simulation) dispatchToStations(report *TickReport) {
	for _, r := range s.robots {
		if r.Status() != Idle || !r.NeedsRecharge() {
			continue
		}
		station, ok := r.NearestStation()
		if !ok {
			continue
		}
		if err := r.BindTargetStation(station); err != nil {
			s.log.Warn().Err(err).Int("robot", r.ID()).Msg("Failed to dispatch robot to station")
			continue
		}
		report.StationDispatches = append(report.StationDispatches, r.ID())
		s.stats.StationDispatches++
		s.ins.stationDispatch.Add(context.Background(), 1)
	}
}

func (s *Simulation) eligible(r *ChargingRobot) bool {
	if r.TargetVehicle() != nil || r.NeedsRecharge() {
		return false
	}
	if r.Status() == BeingCharged && r.Battery() < s.cfg.RechargeResumeLevel {
		return false
	}
	return true
}

func (s *Simulation) assignTasks(report *TickReport) {
	served := make(map[int]bool)
	for _, r := range s.robots {
		if v := r.TargetVehicle(); v != nil {
			served[v.ID()] = true
		}
	}

	var demands []scheduler.Demand
	byID := make(map[int]*Vehicle)
	for _, v := range s.vehicles {
		if !v.NeedsCharge() || served[v.ID()] {
			continue
		}
		byID[v.ID()] = v
		demands = append(demands, scheduler.Demand{
			ID:             v.ID(),
			Position:       v.Position(),
			CurrentBattery: v.CurrentBattery(),
			TargetBattery:  v.TargetBattery(),
		})
	}
	if len(demands) == 0 {
		return
	}

	var candidates []scheduler.Candidate
	robots := make(map[int]*ChargingRobot)
	for _, r := range s.robots {
		if !s.eligible(r) {
			continue
		}
		robots[r.ID()] = r
		candidates = append(candidates, scheduler.Candidate{
			ID:       r.ID(),
			Position: r.Position(),
			Status:   string(r.Status()),
		})
	}

	assignment := s.cfg.Policy(candidates, demands, s.available)
	for _, pair := range assignment {
		r, v := robots[pair.RobotID], byID[pair.VehicleID]
		if r == nil || v == nil {
			s.log.Warn().Int("robot", pair.RobotID).Int("vehicle", pair.VehicleID).Msg("Policy returned unknown pair")
			continue
		}
		if err := r.BindTargetVehicle(v); err != nil {
			s.log.Warn().Err(err).Int("robot", r.ID()).Msg("Failed to bind robot to vehicle")
			continue
		}
		report.Assignment = append(report.Assignment, pair)
		s.stats.Assignments++
		s.ins.assignments.Add(context.Background(), 1)
	}
}

// Run advances up to n ticks, stopping early if ctx is cancelled.
// It returns the number of ticks advanced.
func (s *Simulation) Run(ctx context.Context, n int) (int, error) {
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return i, ctx.Err()
		default:
		}
		s.Tick()
	}
	return n, nil
}

func (s *Simulation) Time() int { return s.tick }
func (s *Simulation) Stats() Stats { return s.stats }
func (s *Simulation) Campus() Campus { return s.campus }
func (s *Simulation) Config() Config { return s.cfg }
func (s *Simulation) Spots() *SpotTable { return s.spots }

// Vehicles returns the vehicles currently on campus in spawn order
func (s *Simulation) Vehicles() []*Vehicle {
	return append([]*Vehicle(nil), s.vehicles...)
}

// Robots returns the robot roster in configuration order
func (s *Simulation) Robots() []*ChargingRobot {
	return append([]*ChargingRobot(nil), s.robots...)
}

// Vehicle looks up an active vehicle by ID
func (s *Simulation) Vehicle(id int) (*Vehicle, bool) {
	for _, v := range s.vehicles {
		if v.ID() == id {
			return v, true
		}
	}
	return nil, false
}

// Robot looks up a robot by ID
func (s *Simulation) Robot(id int) (*ChargingRobot, bool) {
	for _, r := range s.robots {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// AddVehicle places a vehicle built from spec on campus, assigning the next ID
func (s *Simulation) AddVehicle(spec VehicleSpec) (*Vehicle, error) {
	spec.ID = s.nextVehicleID
	spec.SpawnTick = s.tick
	v, err := NewVehicle(s.env(), spec)
	if err != nil {
		return nil, err
	}
	s.nextVehicleID++
	s.vehicles = append(s.vehicles, v)
	s.stats.Spawned++
	s.ins.spawned.Add(context.Background(), 1)
	s.ins.activeVehicles.Add(context.Background(), 1)
	return v, nil
}

// randInt returns a uniform int in [lo, hi]
func randInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

var _ Campus = (*layout.Layout)(nil)
