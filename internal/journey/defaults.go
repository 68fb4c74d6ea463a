package journey

import "fmt"

// Canned imagery used when a planner or generator is not configured.
const (
	sampleImageA   = "https://images.unsplash.com/photo-1528164344705-47542687000d?q=80&w=1000&auto=format&fit=crop"
	sampleImageB   = "https://images.unsplash.com/photo-1543051932-6ef9fecfbc80?q=80&w=1000&auto=format&fit=crop"
	SampleCheckIn  = "https://images.unsplash.com/photo-1516483638261-f4dbaf036963?q=80&w=1000&auto=format&fit=crop"
	PlaceholderImg = "https://via.placeholder.com/400x300?text=No+Image"
	StartImg       = "https://via.placeholder.com/400x300?text=Start+Point"
)

// DefaultRoute returns the canned two-stop route for city.
func DefaultRoute(city string) *Route {
	return &Route{
		Start: fmt.Sprintf("%s Center", city),
		End:   fmt.Sprintf("%s Station", city),
		Waypoints: []Waypoint{
			{
				Name:   fmt.Sprintf("%s Spot A", city),
				City:   city,
				Lat:    25.2673,
				Lng:    110.2946,
				Stay:   30,
				Images: []string{sampleImageA},
			},
			{
				Name:   fmt.Sprintf("%s Spot B", city),
				City:   city,
				Lat:    25.2750,
				Lng:    110.2900,
				Stay:   40,
				Images: []string{sampleImageB},
			},
		},
		Path: [][2]float64{{110.295, 25.265}, {110.290, 25.275}},
	}
}

// DefaultPlan is the planner fallback: the default route's stops, ungeocoded.
func DefaultPlan(city string) *PlannedRoute {
	r := DefaultRoute(city)
	plan := &PlannedRoute{Start: r.Start, End: r.End}
	for _, wp := range r.Waypoints {
		plan.Waypoints = append(plan.Waypoints, PlannedStop{Name: wp.Name, City: wp.City})
	}
	return plan
}
