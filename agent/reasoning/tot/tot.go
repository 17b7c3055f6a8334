// Package tot implements the Tree-of-Thoughts reasoning engine (C12, spec
// §4.9): a capped thought tree explored by one of five strategies
// (best_first, breadth_first, depth_first, beam_search, monte_carlo),
// synthesized into a single conclusion along the tree's best-scoring
// root-to-leaf path.
package tot

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/reasoning"
)

// Config tunes the engine (spec §6: max_tree_depth, max_tree_nodes,
// tree_exploration_strategy).
type Config struct {
	MaxDepth int
	MaxNodes int
	Strategy agent.ExplorationStrategy
	// ChildLimit caps how many children an expansion prompt may add per
	// node; the spec calls for "2-3 children" (0 defaults to 3).
	ChildLimit int
	// BeamWidth is the per-level retention count for beam_search (0
	// defaults to 3).
	BeamWidth int
	// MonteCarloRounds is how many random walks from the root monte_carlo
	// runs (0 defaults to 5).
	MonteCarloRounds int
	// StopProbability is the chance a monte_carlo walk halts at each step
	// once it has reached an expanded node (0 defaults to 0.3).
	StopProbability float64
}

// Engine drives Tree-of-Thoughts exploration over a Prompter.
type Engine struct {
	Prompter reasoning.Prompter
	Config   Config
	rng      *rand.Rand
}

// New constructs an Engine with its own random source for monte_carlo.
func New(p reasoning.Prompter, cfg Config) *Engine {
	return &Engine{Prompter: p, Config: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Result is the outcome of one Run.
type Result struct {
	Tree       *agent.ReasoningTree
	Conclusion string
	Confidence float64
}

// Run explores a thought tree for goal under the configured strategy and
// caps, then synthesizes a conclusion from the best-scoring path (spec
// §4.9, §8 property 10: len(tree.Nodes) <= MaxNodes and every node's Depth
// <= MaxDepth hold throughout).
func (e *Engine) Run(ctx context.Context, goal string) (*Result, error) {
	tree := &agent.ReasoningTree{
		Nodes:               map[string]*agent.ThoughtNode{},
		MaxDepth:            e.maxDepth(),
		MaxNodes:            e.maxNodes(),
		ExplorationStrategy: e.Config.Strategy,
	}

	root, err := e.createRoot(ctx, goal)
	if err != nil {
		return nil, err
	}
	tree.RootID = root.NodeID
	tree.Nodes[root.NodeID] = root

	var (
		bestScore float64
		bestPath  []string
	)
	switch e.Config.Strategy {
	case agent.StrategyBeamSearch:
		bestScore, bestPath, err = e.runBeam(ctx, tree, goal, root)
	case agent.StrategyMonteCarlo:
		bestScore, bestPath, err = e.runMonteCarlo(ctx, tree, goal, root)
	default:
		// best_first, breadth_first, depth_first share a pop/evaluate/
		// expand loop differing only in frontier discipline.
		bestScore, bestPath, err = e.runFrontier(ctx, tree, goal, root)
	}
	if err != nil {
		return nil, err
	}
	tree.BestPath = bestPath

	conclusion, err := e.synthesize(ctx, goal, tree, bestPath)
	if err != nil {
		return nil, err
	}

	return &Result{Tree: tree, Conclusion: conclusion, Confidence: bestScore}, nil
}

// --- frontier-based strategies (best_first, breadth_first, depth_first) ---

type frontierItem struct {
	id  string
	est float64
}

func (e *Engine) runFrontier(ctx context.Context, tree *agent.ReasoningTree, goal string, root *agent.ThoughtNode) (float64, []string, error) {
	var frontier []frontierItem
	push := func(id string, est float64) { frontier = append(frontier, frontierItem{id: id, est: est}) }
	pop := func() (string, bool) {
		if len(frontier) == 0 {
			return "", false
		}
		switch e.Config.Strategy {
		case agent.StrategyBestFirst:
			bi := 0
			for i := 1; i < len(frontier); i++ {
				if frontier[i].est > frontier[bi].est {
					bi = i
				}
			}
			id := frontier[bi].id
			frontier = append(frontier[:bi], frontier[bi+1:]...)
			return id, true
		case agent.StrategyDepthFirst:
			id := frontier[len(frontier)-1].id
			frontier = frontier[:len(frontier)-1]
			return id, true
		default: // breadth_first
			id := frontier[0].id
			frontier = frontier[1:]
			return id, true
		}
	}

	push(root.NodeID, root.Score)

	var bestScore float64
	var bestPath []string
	haveBest := false

	for {
		id, ok := pop()
		if !ok {
			break
		}
		node := tree.Nodes[id]
		score, leaf, err := e.evaluate(ctx, goal, node)
		if err != nil {
			return 0, nil, err
		}
		node.Score = score
		node.State = agent.ThoughtEvaluated

		if leaf || node.Depth >= tree.MaxDepth || len(tree.Nodes) >= tree.MaxNodes {
			node.State = agent.ThoughtLeaf
			if !haveBest || score > bestScore {
				bestScore, bestPath, haveBest = score, pathTo(tree, id), true
			}
			continue
		}

		children, err := e.expand(ctx, goal, node)
		if err != nil {
			return 0, nil, err
		}
		node.State = agent.ThoughtExpanded
		for _, c := range children {
			if len(tree.Nodes) >= tree.MaxNodes {
				break
			}
			child := e.newChild(tree, node, c)
			push(child.NodeID, child.Score)
		}
		if !haveBest || score > bestScore {
			bestScore, bestPath, haveBest = score, pathTo(tree, id), true
		}
	}
	return bestScore, bestPath, nil
}

// --- beam_search ---

func (e *Engine) runBeam(ctx context.Context, tree *agent.ReasoningTree, goal string, root *agent.ThoughtNode) (float64, []string, error) {
	level := []string{root.NodeID}
	beamWidth := e.beamWidth()

	var bestScore float64
	var bestPath []string
	haveBest := false

	for len(level) > 0 {
		var next []string
		for _, id := range level {
			if len(tree.Nodes) > tree.MaxNodes {
				break
			}
			node := tree.Nodes[id]
			score, leaf, err := e.evaluate(ctx, goal, node)
			if err != nil {
				return 0, nil, err
			}
			node.Score = score
			node.State = agent.ThoughtEvaluated

			if !haveBest || score > bestScore {
				bestScore, bestPath, haveBest = score, pathTo(tree, id), true
			}

			if leaf || node.Depth >= tree.MaxDepth || len(tree.Nodes) >= tree.MaxNodes {
				node.State = agent.ThoughtLeaf
				continue
			}

			children, err := e.expand(ctx, goal, node)
			if err != nil {
				return 0, nil, err
			}
			node.State = agent.ThoughtExpanded
			for _, c := range children {
				if len(tree.Nodes) >= tree.MaxNodes {
					break
				}
				child := e.newChild(tree, node, c)
				next = append(next, child.NodeID)
			}
		}
		sort.Slice(next, func(i, j int) bool { return tree.Nodes[next[i]].Score > tree.Nodes[next[j]].Score })
		if len(next) > beamWidth {
			next = next[:beamWidth]
		}
		level = next
	}
	return bestScore, bestPath, nil
}

// --- monte_carlo ---

func (e *Engine) runMonteCarlo(ctx context.Context, tree *agent.ReasoningTree, goal string, root *agent.ThoughtNode) (float64, []string, error) {
	var bestScore float64
	var bestPath []string
	haveBest := false

	for round := 0; round < e.mcRounds(); round++ {
		current := root
		for {
			if current.State == agent.ThoughtLive {
				score, leaf, err := e.evaluate(ctx, goal, current)
				if err != nil {
					return 0, nil, err
				}
				current.Score = score
				current.State = agent.ThoughtEvaluated
				if leaf || current.Depth >= tree.MaxDepth || len(tree.Nodes) >= tree.MaxNodes {
					current.State = agent.ThoughtLeaf
				}
			}
			if !haveBest || current.Score > bestScore {
				bestScore, bestPath, haveBest = current.Score, pathTo(tree, current.NodeID), true
			}
			if current.State == agent.ThoughtLeaf {
				break
			}
			if len(current.Children) == 0 {
				if len(tree.Nodes) >= tree.MaxNodes {
					current.State = agent.ThoughtLeaf
					break
				}
				children, err := e.expand(ctx, goal, current)
				if err != nil {
					return 0, nil, err
				}
				current.State = agent.ThoughtExpanded
				for _, c := range children {
					if len(tree.Nodes) >= tree.MaxNodes {
						break
					}
					e.newChild(tree, current, c)
				}
				if len(current.Children) == 0 {
					current.State = agent.ThoughtLeaf
					break
				}
			}
			if e.rng.Float64() < e.stopProbability() {
				break
			}
			current = e.weightedChild(tree, current)
		}
	}
	return bestScore, bestPath, nil
}

// weightedChild picks among node's live children biased by score, falling
// back to node itself if every child has been pruned.
func (e *Engine) weightedChild(tree *agent.ReasoningTree, node *agent.ThoughtNode) *agent.ThoughtNode {
	const epsilon = 0.01
	var total float64
	var children []*agent.ThoughtNode
	for _, id := range node.Children {
		c := tree.Nodes[id]
		if c == nil || c.State == agent.ThoughtPruned {
			continue
		}
		children = append(children, c)
		total += c.Score + epsilon
	}
	if len(children) == 0 {
		return node
	}
	pick := e.rng.Float64() * total
	for _, c := range children {
		pick -= c.Score + epsilon
		if pick <= 0 {
			return c
		}
	}
	return children[len(children)-1]
}

// --- shared node/LLM plumbing ---

type childSpec struct {
	Thought        string  `json:"thought"`
	Type           string  `json:"type"`
	EstimatedScore float64 `json:"estimated_score"`
}

func (e *Engine) createRoot(ctx context.Context, goal string) (*agent.ThoughtNode, error) {
	system := `Respond with a single JSON object: {"thought": string}.`
	user := fmt.Sprintf("Goal: %s\nPropose an initial hypothesis for how to approach this goal.", goal)
	text, err := e.Prompter.Prompt(ctx, system, user)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Thought string `json:"thought"`
	}
	if err := reasoning.DecodeJSON(text, &resp); err != nil {
		return nil, agent.NewError(agent.ErrKindLLMParseError, "decode tree-of-thoughts root", err)
	}
	return &agent.ThoughtNode{
		NodeID:      uuid.NewString(),
		Depth:       0,
		Thought:     resp.Thought,
		ThoughtType: agent.ThoughtHypothesis,
		State:       agent.ThoughtLive,
	}, nil
}

func (e *Engine) evaluate(ctx context.Context, goal string, node *agent.ThoughtNode) (score float64, leaf bool, err error) {
	system := `Respond with a single JSON object: {"score": number in [0,1], "leaf": boolean}.`
	user := fmt.Sprintf("Goal: %s\nThought (depth %d): %s\nScore this thought's quality toward the goal, and say whether it is already a terminal answer (leaf) or needs further expansion.", goal, node.Depth, node.Thought)
	text, err := e.Prompter.Prompt(ctx, system, user)
	if err != nil {
		return 0, false, err
	}
	var resp struct {
		Score float64 `json:"score"`
		Leaf  bool    `json:"leaf"`
	}
	if err := reasoning.DecodeJSON(text, &resp); err != nil {
		return 0, false, agent.NewError(agent.ErrKindLLMParseError, "decode tree-of-thoughts evaluation", err)
	}
	return resp.Score, resp.Leaf, nil
}

func (e *Engine) expand(ctx context.Context, goal string, node *agent.ThoughtNode) ([]childSpec, error) {
	system := `Respond with a single JSON object: {"children": [{"thought": string, "type": string, "estimated_score": number}]}, with 2 or 3 entries.`
	user := fmt.Sprintf("Goal: %s\nParent thought (depth %d): %s\nPropose 2 to 3 distinct next thoughts that explore different alternatives from this one.", goal, node.Depth, node.Thought)
	text, err := e.Prompter.Prompt(ctx, system, user)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Children []childSpec `json:"children"`
	}
	if err := reasoning.DecodeJSON(text, &resp); err != nil {
		return nil, agent.NewError(agent.ErrKindLLMParseError, "decode tree-of-thoughts expansion", err)
	}
	if limit := e.childLimit(); len(resp.Children) > limit {
		resp.Children = resp.Children[:limit]
	}
	return resp.Children, nil
}

func (e *Engine) newChild(tree *agent.ReasoningTree, parent *agent.ThoughtNode, spec childSpec) *agent.ThoughtNode {
	child := &agent.ThoughtNode{
		NodeID:      uuid.NewString(),
		ParentID:    parent.NodeID,
		Depth:       parent.Depth + 1,
		Thought:     spec.Thought,
		ThoughtType: normalizeThoughtType(spec.Type),
		Score:       spec.EstimatedScore,
		State:       agent.ThoughtLive,
	}
	tree.Nodes[child.NodeID] = child
	parent.Children = append(parent.Children, child.NodeID)
	return child
}

func normalizeThoughtType(s string) agent.ThoughtType {
	switch agent.ThoughtType(s) {
	case agent.ThoughtHypothesis, agent.ThoughtAnalysis, agent.ThoughtAlternative:
		return agent.ThoughtType(s)
	default:
		return agent.ThoughtAlternative
	}
}

func (e *Engine) synthesize(ctx context.Context, goal string, tree *agent.ReasoningTree, path []string) (string, error) {
	system := `Respond with a single JSON object: {"conclusion": string}.`
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n", goal)
	sb.WriteString("Best path of thoughts:\n")
	for i, id := range path {
		n := tree.Nodes[id]
		fmt.Fprintf(&sb, "%d. %s (score %.2f)\n", i+1, n.Thought, n.Score)
	}
	sb.WriteString("Synthesize these into a single final conclusion for the goal.\n")

	text, err := e.Prompter.Prompt(ctx, system, sb.String())
	if err != nil {
		return "", err
	}
	var resp struct {
		Conclusion string `json:"conclusion"`
	}
	if err := reasoning.DecodeJSON(text, &resp); err != nil {
		return "", agent.NewError(agent.ErrKindLLMParseError, "decode tree-of-thoughts synthesis", err)
	}
	return resp.Conclusion, nil
}

func pathTo(tree *agent.ReasoningTree, nodeID string) []string {
	var path []string
	id := nodeID
	for id != "" {
		path = append([]string{id}, path...)
		node := tree.Nodes[id]
		if node == nil || node.ParentID == "" {
			break
		}
		id = node.ParentID
	}
	return path
}

func (e *Engine) maxDepth() int {
	if e.Config.MaxDepth > 0 {
		return e.Config.MaxDepth
	}
	return 3
}

func (e *Engine) maxNodes() int {
	if e.Config.MaxNodes > 0 {
		return e.Config.MaxNodes
	}
	return 20
}

func (e *Engine) childLimit() int {
	if e.Config.ChildLimit > 0 {
		return e.Config.ChildLimit
	}
	return 3
}

func (e *Engine) beamWidth() int {
	if e.Config.BeamWidth > 0 {
		return e.Config.BeamWidth
	}
	return 3
}

func (e *Engine) mcRounds() int {
	if e.Config.MonteCarloRounds > 0 {
		return e.Config.MonteCarloRounds
	}
	return 5
}

func (e *Engine) stopProbability() float64 {
	if e.Config.StopProbability > 0 {
		return e.Config.StopProbability
	}
	return 0.3
}
