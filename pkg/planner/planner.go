// Package planner implements the 4D A* planner (C4): a time-aware
// shortest-path search over a discretized lat/lon/altitude-lane/time
// lattice (§4.4). The open set is a binary heap via container/heap,
// grounded on the retrieved CBS solver's heap.Interface node-ordering
// pattern (internal/algo hybrid_cbs.go in the mapf-het research repo),
// adapted from a CBS constraint-tree heap to a single-agent A* node heap
// with the f/h/insertion-order tie-break §4.4 requires.
package planner

import (
	"container/heap"
	"errors"
	"math"

	"github.com/picogrid/utm-core/pkg/config"
	"github.com/picogrid/utm-core/pkg/geo"
	"github.com/picogrid/utm-core/pkg/geofence"
	"github.com/picogrid/utm-core/pkg/models"
)

// ErrExhausted is returned when the search exceeds MAX_EXPANSIONS without
// reaching the goal (§4.4 "Search bound").
var ErrExhausted = errors.New("planner: expansions exhausted")

// ErrNoPath is returned when the open set empties before the goal is found.
var ErrNoPath = errors.New("planner: no path")

// ErrNoLaneAvailable is returned when every lane of the direction class is
// in ForbiddenLanes (the resolver has exhausted altitude re-stratification).
var ErrNoLaneAvailable = errors.New("planner: no lane available")

// ErrBlockedEndpoint is returned when the snapped start or goal cell is
// itself inside a NO_FLY zone.
var ErrBlockedEndpoint = errors.New("planner: start or goal is forbidden")

// Request parameters a single plan() call (§4.4, §4.6 step 2/5c).
type Request struct {
	Start          models.Point4D // horizontal position to depart from (the pickup)
	Goal           models.Point4D // horizontal position to arrive at (the delivery)
	StartTimeS     float64        // t0: absolute time at which Start is departed
	ForbiddenLanes []float64      // altitude lanes excluded by prior re-stratification attempts

	// DynamicObstacles are committed trajectories to steer around (§4.4
	// "Dynamic obstacle avoidance"); nil/empty disables the penalty term.
	DynamicObstacles []models.Trajectory
	DynamicPenalty   float64 // soft per-node cost near a dynamic obstacle; 0 disables
}

// Planner runs 4D A* against a fixed geofence index and grid configuration.
type Planner struct {
	cfg *config.Config
	idx *geofence.Index
}

// New creates a Planner bound to cfg and the static geofence index.
func New(cfg *config.Config, idx *geofence.Index) *Planner {
	return &Planner{cfg: cfg, idx: idx}
}

// node is a lattice point: horizontal cell (ix,iy) and time step it. It
// carries no altitude index because one Plan call uses a single lane for
// the whole search (see Plan's doc comment on the stratification
// interpretation).
type node struct {
	ix, iy, it int
}

// Plan runs the 4D A* search from req.Start to req.Goal and returns the
// resulting Trajectory, or one of ErrExhausted/ErrNoPath/ErrNoLaneAvailable
// /ErrBlockedEndpoint.
//
// Stratification interpretation: per §4.6 5(a), altitude re-stratification
// replans the *entire* trajectory onto an alternate lane, and §4.4 states
// altitude changes are only permitted "at start and end of the search" —
// read together, a single plan() call commits to exactly one lane for its
// whole horizontal search (chosen from the direction class's lane set,
// skipping ForbiddenLanes), snapping both Start and Goal onto that same
// lane. This keeps the lattice's altitude dimension degenerate within one
// search while still letting the resolver retry with a different lane.
func (p *Planner) Plan(req Request) (models.Trajectory, error) {
	if forbidden, _ := p.idx.ClassifyPoint(req.Start); forbidden {
		return models.Trajectory{}, ErrBlockedEndpoint
	}
	if forbidden, _ := p.idx.ClassifyPoint(req.Goal); forbidden {
		return models.Trajectory{}, ErrBlockedEndpoint
	}

	dir := geo.DominantDirection(req.Start, req.Goal)
	northSouth := dir == geo.North || dir == geo.South
	lanes := p.cfg.Lanes(northSouth)

	lane, ok := pickLane(lanes, req.ForbiddenLanes)
	if !ok {
		return models.Trajectory{}, ErrNoLaneAvailable
	}

	maxSpeed := p.cfg.DroneMaxSpeedMps
	cruiseSpeed := p.cfg.DroneCruiseSpeedMps

	origin := req.Start
	gridRes := p.cfg.GridResolutionM
	dt := p.cfg.TimeResolutionS

	toNode := func(pt models.Point4D, it int) node {
		e, n := geo.EastNorthMeters(origin, pt)
		return node{ix: int(math.Round(e / gridRes)), iy: int(math.Round(n / gridRes)), it: it}
	}
	toPoint := func(n node) models.Point4D {
		pt := geo.OffsetMeters(origin, float64(n.ix)*gridRes, float64(n.iy)*gridRes)
		pt.AltM = lane
		pt.TimeS = req.StartTimeS + float64(n.it)*dt
		return pt
	}

	startNode := toNode(req.Start, 0)
	goalCell := toNode(req.Goal, 0) // it ignored for goal comparison

	maxSteps := planningHorizonSteps(req.Start, req.Goal, p.cfg, cruiseSpeed)

	open := &openHeap{}
	heap.Init(open)
	gScore := map[node]float64{startNode: 0}
	cameFrom := map[node]node{}
	seq := 0

	h0 := geo.HorizontalDistance(toPoint(startNode), req.Goal)
	heap.Push(open, &openItem{n: startNode, f: h0, h: h0, seq: seq})

	expansions := 0
	var goalNode node
	found := false

	deltas := [][2]int{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 0}, {0, 1},
		{1, -1}, {1, 0}, {1, 1},
	}

	for open.Len() > 0 {
		if expansions >= p.cfg.MaxExpansions {
			return models.Trajectory{}, ErrExhausted
		}
		cur := heap.Pop(open).(*openItem)
		n := cur.n
		expansions++

		if n.ix == goalCell.ix && n.iy == goalCell.iy {
			goalNode = n
			found = true
			break
		}
		if n.it >= maxSteps {
			continue
		}

		curPt := toPoint(n)
		if forbidden, _ := p.idx.ClassifyPoint(curPt); forbidden {
			continue
		}

		for _, d := range deltas {
			m := node{ix: n.ix + d[0], iy: n.iy + d[1], it: n.it + 1}
			mPt := toPoint(m)

			hdist := geo.HorizontalDistance(curPt, mPt)
			if hdist > 0 && hdist/dt > maxSpeed+1e-9 {
				continue
			}

			forbidden, mult := p.idx.ClassifyPoint(mPt)
			if forbidden {
				continue
			}
			_, curMult := p.idx.ClassifyPoint(curPt)
			avgMult := (curMult + mult) / 2

			stepCost := hdist * avgMult
			stepCost += p.dynamicPenaltyAt(mPt, req.DynamicObstacles, penaltyConfig(p.cfg, req.DynamicPenalty))

			tentativeG := gScore[n] + stepCost
			if g, ok := gScore[m]; !ok || tentativeG < g {
				gScore[m] = tentativeG
				cameFrom[m] = n
				hScore := geo.HorizontalDistance(mPt, req.Goal)
				seq++
				heap.Push(open, &openItem{n: m, f: tentativeG + hScore, h: hScore, seq: seq})
			}
		}
	}

	if !found {
		return models.Trajectory{}, ErrNoPath
	}

	path := reconstruct(cameFrom, startNode, goalNode)
	return buildTrajectory(path, toPoint, req, cruiseSpeed), nil
}

// pickLane returns the first lane in lanes not present in forbidden.
func pickLane(lanes config.LaneSet, forbidden []float64) (float64, bool) {
	for _, l := range lanes {
		excluded := false
		for _, f := range forbidden {
			if f == l {
				excluded = true
				break
			}
		}
		if !excluded {
			return l, true
		}
	}
	return 0, false
}

// planningHorizonSteps bounds the time dimension of the search so the
// lattice stays finite even before MAX_EXPANSIONS kicks in: a generous
// multiple of the straight-line travel time at the (possibly damped)
// cruise speed.
func planningHorizonSteps(start, goal models.Point4D, cfg *config.Config, cruiseSpeed float64) int {
	dist := geo.HorizontalDistance(start, goal)
	minSpeed := cruiseSpeed * cfg.SpeedMinRatio
	if minSpeed <= 0 {
		minSpeed = cruiseSpeed
	}
	travelS := dist / math.Max(minSpeed, 0.1)
	steps := int(math.Ceil((travelS*3 + 60) / cfg.TimeResolutionS))
	if steps < 4 {
		steps = 4
	}
	return steps
}

// penaltyConfig resolves the effective dynamic penalty: an explicit
// per-request override (used by the resolver's escalating retries, §4.4)
// takes precedence over the static config default.
func penaltyConfig(cfg *config.Config, override float64) float64 {
	if override > 0 {
		return override
	}
	return cfg.DynamicPenalty
}

// dynamicPenaltyAt returns penalty once per dynamic obstacle whose
// interpolated position at pt's time lies within the configured
// horizontal-and-vertical separation minima of pt — the same conjunction
// the conflict detector uses to flag a conflict (§4.4, §4.5).
func (p *Planner) dynamicPenaltyAt(pt models.Point4D, obstacles []models.Trajectory, penalty float64) float64 {
	if penalty <= 0 {
		return 0
	}
	count := 0
	for _, obs := range obstacles {
		start, end := obs.TimeSpan()
		if pt.TimeS < start || pt.TimeS > end {
			continue
		}
		obsPos := geo.InterpolatePosition(obs, pt.TimeS)
		if geo.HorizontalDistance(pt, obsPos) < p.cfg.HorizontalSeparationM &&
			geo.VerticalDistance(pt, obsPos) < p.cfg.VerticalSeparationM {
			count++
		}
	}
	return penalty * float64(count)
}

func reconstruct(cameFrom map[node]node, start, goal node) []node {
	path := []node{goal}
	cur := goal
	for cur != start {
		prev, ok := cameFrom[cur]
		if !ok {
			break
		}
		path = append(path, prev)
		cur = prev
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func buildTrajectory(path []node, toPoint func(node) models.Point4D, req Request, cruiseSpeed float64) models.Trajectory {
	wps := make([]models.Waypoint, 0, len(path)+1)
	for i, n := range path {
		pt := toPoint(n)
		if i == 0 {
			pt.Lat, pt.Lon = req.Start.Lat, req.Start.Lon
		}
		wps = append(wps, models.Waypoint{Point4D: pt, SpeedMps: cruiseSpeed})
	}
	// Snap the final horizontal position exactly onto the requested goal
	// and zero its departing speed (§3: "The last waypoint's speed is 0").
	last := &wps[len(wps)-1]
	last.Lat, last.Lon = req.Goal.Lat, req.Goal.Lon
	last.SpeedMps = 0

	return models.Trajectory{Waypoints: wps}
}

// openItem is one entry in the A* open set.
type openItem struct {
	n     node
	f, h  float64
	seq   int
	index int
}

// openHeap implements container/heap.Interface with the tie-break order
// §4.4 specifies: lower f-score first; ties broken by lower h-score; ties
// broken by earliest insertion (lower seq).
type openHeap []*openItem

func (o openHeap) Len() int { return len(o) }
func (o openHeap) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	if o[i].h != o[j].h {
		return o[i].h < o[j].h
	}
	return o[i].seq < o[j].seq
}
func (o openHeap) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}
func (o *openHeap) Push(x interface{}) {
	item := x.(*openItem)
	item.index = len(*o)
	*o = append(*o, item)
}
func (o *openHeap) Pop() interface{} {
	old := *o
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*o = old[:n-1]
	return item
}
