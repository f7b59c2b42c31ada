package graph

import (
	"slices"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/dcsrlab/dcsr/utils"
)

// ComputeGraphStats reports the degree distribution of the frozen graph.
func (g *Graph[V, W]) ComputeGraphStats() {
	n := g.VertexCount()
	degrees := make([]float64, 0, n)
	sinks := uint64(0)
	edges := uint64(0)
	maxDegree := uint64(0)

	for v := uint64(0); v < n; v++ {
		d := g.GetDegree(V(v))
		if d == 0 {
			sinks++
		}
		edges += d
		maxDegree = utils.Max(maxDegree, d)
		degrees = append(degrees, float64(d))
	}
	slices.Sort(degrees)

	log.Info().Msg("----GraphStats----")
	log.Info().Msg("Vertices " + utils.V(n))
	log.Info().Msg("Sinks " + utils.V(sinks) + " pct: " + utils.F("%.3f", float64(sinks)*100.0/float64(utils.Max(n, 1))))
	log.Info().Msg("Edges " + utils.V(edges))
	if len(degrees) > 0 {
		log.Info().Msg("MaxDeg " + utils.V(maxDegree) +
			" MeanDeg " + utils.F("%.3f", stat.Mean(degrees, nil)) +
			" MedianDeg " + utils.F("%.1f", stat.Quantile(0.5, stat.Empirical, degrees, nil)) +
			" P95Deg " + utils.F("%.1f", stat.Quantile(0.95, stat.Empirical, degrees, nil)))
	}
	log.Info().Msg("----EndStats----")
}
