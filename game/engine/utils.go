package engine

import "sort"

// TypeCount is how many elements of one type a world holds
type TypeCount struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
	Count int    `json:"count"`
	Value int    `json:"value"`
}

// WorldStats summarizes the contents of a generated world
type WorldStats struct {
	Name          string      `json:"name"`
	Rocks         int         `json:"rocks"`
	Elements      int         `json:"elements"`
	TotalValue    int         `json:"total_value"`
	ByType        []TypeCount `json:"by_type"`
	DeepestY      int         `json:"deepest_y"`
	MovesToBottom int         `json:"moves_to_bottom"`
	FuelStops     int         `json:"fuel_stops"`
}

// AnalyzeWorld generates the world described by config and counts what is in it
func AnalyzeWorld(config *WorldConfig) WorldStats {
	rocks, elements := config.Generate()
	stats := WorldStats{
		Name:     config.Name,
		Rocks:    len(rocks),
		Elements: len(elements),
		ByType:   CountElementTypes(elements),
	}
	for _, e := range elements {
		stats.TotalValue += e.Type.Price
		if e.Location.Y > stats.DeepestY {
			stats.DeepestY = e.Location.Y
		}
	}

	if config.Unit > 0 && BottomLimit > config.Start.Y {
		stats.MovesToBottom = (BottomLimit - config.Start.Y) / config.Unit
	}
	if config.FuelPerMove > 0 && config.FuelCapacity > 0 {
		perTank := config.FuelCapacity / config.FuelPerMove
		if perTank > 0 && stats.MovesToBottom > config.StartingFuel/config.FuelPerMove {
			stats.FuelStops = (stats.MovesToBottom - config.StartingFuel/config.FuelPerMove + perTank - 1) / perTank
		}
	}
	return stats
}

// CountElementTypes groups elements by type, most valuable first
func CountElementTypes(elements []Element) []TypeCount {
	byName := make(map[string]*TypeCount)
	for _, e := range elements {
		tc, ok := byName[e.Type.Name]
		if !ok {
			tc = &TypeCount{Name: e.Type.Name, Price: e.Type.Price}
			byName[e.Type.Name] = tc
		}
		tc.Count++
		tc.Value += e.Type.Price
	}

	counts := make([]TypeCount, 0, len(byName))
	for _, tc := range byName {
		counts = append(counts, *tc)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Price != counts[j].Price {
			return counts[i].Price > counts[j].Price
		}
		return counts[i].Name < counts[j].Name
	})
	return counts
}

// ManhattanDistance calculates the Manhattan distance between two points
func ManhattanDistance(from, to Point) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// NearestElement finds the element closest to p
func NearestElement(p Point, elements []Element) (Element, int, bool) {
	best := -1
	var nearest Element
	for _, e := range elements {
		d := ManhattanDistance(p, e.Location)
		if best == -1 || d < best {
			best = d
			nearest = e
		}
	}
	return nearest, best, best != -1
}
