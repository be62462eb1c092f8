package capacity

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raterudder/solarprep/pkg/source"
	"github.com/raterudder/solarprep/pkg/types"
)

const (
	// CapacityQuantile is the quantile of positive generation taken as an
	// installation's capacity.
	CapacityQuantile = 0.98

	// DefaultClusters is the number of capacity clusters.
	DefaultClusters = 3

	// Unclustered marks installations excluded from clustering.
	Unclustered = -1
)

// preferredMonths orders the stop-date months used to pick a raw file. Summer
// months come first since they show the highest generation.
var preferredMonths = []time.Month{
	time.August,
	time.July,
	time.June,
	time.May,
	time.September,
	time.April,
	time.October,
}

// Estimate returns the capacity of a solar series: the CapacityQuantile of
// its strictly positive values, or 0 if there are none.
func Estimate(readings []types.Reading) float64 {
	var positive []float64
	for _, r := range readings {
		if r.Value > 0 {
			positive = append(positive, r.Value)
		}
	}
	if len(positive) == 0 {
		return 0
	}
	return Percentile(positive, CapacityQuantile)
}

// SelectFile picks the raw solar file whose stop date falls in the most
// preferred month, falling back to the first file.
func SelectFile(files []source.File) (source.File, bool) {
	if len(files) == 0 {
		return source.File{}, false
	}
	for _, month := range preferredMonths {
		for _, f := range files {
			if f.Stop.Month == month {
				return f, true
			}
		}
	}
	return files[0], true
}

// Cluster assigns clusters to capacities above types.MinClusterCapacityKW
// and marks the rest Unclustered. It returns a new slice and the centroids
// indexed by cluster.
func Cluster(capacities []types.Capacity, k int) ([]types.Capacity, []float64) {
	out := make([]types.Capacity, len(capacities))
	copy(out, capacities)

	var idx []int
	var values []float64
	for i, c := range out {
		out[i].Cluster = Unclustered
		if c.Capacity > types.MinClusterCapacityKW {
			idx = append(idx, i)
			values = append(values, c.Capacity)
		}
	}

	labels, centroids := KMeans(values, k)
	for j, i := range idx {
		out[i].Cluster = labels[j]
	}
	return out, centroids
}

// ClusterSummary describes one capacity cluster.
type ClusterSummary struct {
	Cluster        int     `yaml:"cluster"`
	Centroid       float64 `yaml:"centroid"`
	MedianCapacity float64 `yaml:"median_capacity"`
	Installations  int     `yaml:"installations"`
	// FileCounts maps a number of solar files to how many installations in
	// the cluster have that many.
	FileCounts map[int]int `yaml:"file_counts"`
}

// Summary is the report written after clustering.
type Summary struct {
	RunID       string           `yaml:"run_id,omitempty"`
	GeneratedAt time.Time        `yaml:"generated_at"`
	Source      Source           `yaml:"source"`
	Estimated   int              `yaml:"estimated"`
	Excluded    []string         `yaml:"excluded"`
	Clusters    []ClusterSummary `yaml:"clusters"`
}

// Summarize groups clustered capacities. centroids is indexed by cluster as
// returned from Cluster.
func Summarize(capacities []types.Capacity, centroids []float64) Summary {
	s := Summary{Estimated: len(capacities)}
	byCluster := make(map[int][]types.Capacity)
	for _, c := range capacities {
		if c.Cluster == Unclustered {
			s.Excluded = append(s.Excluded, c.InstallationID)
			continue
		}
		byCluster[c.Cluster] = append(byCluster[c.Cluster], c)
	}
	sort.Strings(s.Excluded)

	for cluster := 0; cluster < len(centroids); cluster++ {
		members := byCluster[cluster]
		cs := ClusterSummary{
			Cluster:       cluster,
			Centroid:      centroids[cluster],
			Installations: len(members),
			FileCounts:    make(map[int]int),
		}
		values := make([]float64, len(members))
		for i, c := range members {
			values[i] = c.Capacity
			cs.FileCounts[c.NumberOfFiles]++
		}
		if len(values) > 0 {
			cs.MedianCapacity = Median(values)
		}
		s.Clusters = append(s.Clusters, cs)
	}
	return s
}

// WriteSummary writes s as YAML to path.
func WriteSummary(path string, s Summary) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// ReadSummary reads a summary written by WriteSummary.
func ReadSummary(path string) (Summary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("reading summary: %w", err)
	}
	var s Summary
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Summary{}, fmt.Errorf("parsing summary: %w", err)
	}
	return s, nil
}
