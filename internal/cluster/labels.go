package cluster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ashita-ai/suisen/internal/model"
)

// dominantSupport is the fraction of a cluster's members that must
// share a feature before it can name the cluster.
const dominantSupport = 0.4

// canonicalPatterns maps well-known feature vocabularies to the names
// recruiters actually use. Checked in order; first hit wins.
var canonicalPatterns = []struct {
	name     string
	keywords []string
}{
	{"CUDA/GPU Experts", []string{"cuda", "gpu", "tensorrt", "nvidia"}},
	{"LLM Inference Engineers", []string{"llm", "inference", "vllm", "triton"}},
	{"Fullstack Developers", []string{"fullstack", "full-stack", "react", "node", "javascript", "typescript", "frontend"}},
	{"Deep Learning Engineers", []string{"deep learning", "pytorch", "tensorflow", "neural"}},
	{"DevOps Engineers", []string{"devops", "kubernetes", "docker", "terraform", "ci/cd"}},
}

// labelClusters names each cluster from its dominant features: domains
// are examined before skills, a feature needs dominantSupport within
// the cluster, and well-known vocabularies map to canonical names.
// Clusters with no dominant feature get an experience-tier name.
// Returned labels are unique so per-cluster stats never collide.
func labelClusters(clusters [][]*model.Candidate) []string {
	labels := make([]string, len(clusters))
	seen := make(map[string]int, len(clusters))
	for i, members := range clusters {
		label := labelCluster(members)
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s %d", label, n)
		}
		labels[i] = label
	}
	return labels
}

func labelCluster(members []*model.Candidate) string {
	domains := dominantFeatures(members, func(c *model.Candidate) []string { return c.Domains })
	skills := dominantFeatures(members, func(c *model.Candidate) []string { return c.Skills })

	if name, ok := canonicalName(domains); ok {
		return name
	}
	if name, ok := canonicalName(skills); ok {
		return name
	}
	if len(domains) > 0 {
		return titleCase(domains[0]) + " Specialists"
	}
	if len(skills) > 0 {
		return titleCase(skills[0]) + " Specialists"
	}
	return experienceTier(members)
}

// dominantFeatures returns the features shared by at least
// dominantSupport of the members, strongest support first. Ties break
// lexicographically so identical input yields identical labels.
func dominantFeatures(members []*model.Candidate, pick func(*model.Candidate) []string) []string {
	if len(members) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, m := range members {
		unique := make(map[string]struct{})
		for _, f := range pick(m) {
			f = strings.ToLower(strings.TrimSpace(f))
			if f != "" {
				unique[f] = struct{}{}
			}
		}
		for f := range unique {
			counts[f]++
		}
	}

	threshold := dominantSupport * float64(len(members))
	var out []string
	for f, n := range counts {
		if float64(n) >= threshold {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func canonicalName(features []string) (string, bool) {
	for _, p := range canonicalPatterns {
		for _, kw := range p.keywords {
			for _, f := range features {
				if strings.Contains(f, kw) {
					return p.name, true
				}
			}
		}
	}
	return "", false
}

func experienceTier(members []*model.Candidate) string {
	if len(members) == 0 {
		return "Junior Engineers"
	}
	var total float64
	for _, m := range members {
		total += float64(m.ExperienceYears)
	}
	switch mean := total / float64(len(members)); {
	case mean >= 8:
		return "Senior Engineers"
	case mean >= 3:
		return "Mid-Level Engineers"
	default:
		return "Junior Engineers"
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
