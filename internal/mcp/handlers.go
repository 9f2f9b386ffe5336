package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/grag/internal/config"
	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/sanitize"
	"github.com/nvandessel/grag/internal/schedule"
	"github.com/nvandessel/grag/internal/simulation"
	"github.com/nvandessel/grag/internal/store"
)

// defaultPreviewEdge is the edge used for schedule previews when none is given.
const defaultPreviewEdge = 1024

// maxSimulationLayers bounds the synthetic model built by grag_simulate.
const maxSimulationLayers = 64

// registerTools registers all grag MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "grag_resolve",
		Description: "Resolve the base (λ, δ) pair for a preset, strength and optional overrides",
	}, s.handleGragResolve)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "grag_schedule",
		Description: "Preview the full schedule: per-layer pairs, timestep multipliers and resolution tiers",
	}, s.handleGragSchedule)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "grag_presets",
		Description: "List, show, save or delete GRAG presets",
	}, s.handleGragPresets)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "grag_simulate",
		Description: "Run a synthetic sampling loop with and without reweighting and report how far the outputs diverge",
	}, s.handleGragSimulate)

	return nil
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() error {
	s.server.AddResource(&sdk.Resource{
		URI:         "grag://presets",
		Name:        "grag-presets",
		Description: "Available GRAG presets grouped by category, with their base (λ, δ) values.",
		MIMEType:    "text/markdown",
	}, s.handlePresetsResource)
	return nil
}

// handlePresetsResource renders the preset catalog as markdown.
func (s *Server) handlePresetsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	presets, err := store.List(ctx, s.presets)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}

	var b strings.Builder
	b.WriteString("# GRAG Presets\n")
	category := ""
	for _, p := range presets {
		if p.Category != category {
			category = p.Category
			fmt.Fprintf(&b, "\n## %s\n\n", category)
		}
		fmt.Fprintf(&b, "- **%s** λ=%.2f δ=%.2f", p.Name, p.LambdaBase, p.DeltaBase)
		if p.Description != "" {
			fmt.Fprintf(&b, " - %s", p.Description)
		}
		b.WriteString("\n")
	}

	uri := "grag://presets"
	if req != nil && req.Params != nil && req.Params.URI != "" {
		uri = req.Params.URI
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     b.String(),
		}},
	}, nil
}

// buildSchedule turns a run request into a schedule.
func (s *Server) buildSchedule(ctx context.Context, in RunInput) (*schedule.Schedule, error) {
	cc, err := s.config.Apply(config.Request(in))
	if err != nil {
		return nil, err
	}
	preset, err := store.Lookup(ctx, s.presets, cc.Preset)
	if err != nil {
		return nil, err
	}
	return schedule.Build(cc, preset)
}

func runParams(in RunInput) map[string]interface{} {
	params := map[string]interface{}{}
	if in.Mode != "" {
		params["mode"] = in.Mode
	}
	if in.Preset != "" {
		params["preset"] = in.Preset
	}
	if in.Strength != nil {
		params["strength"] = *in.Strength
	}
	if in.Lambda != nil {
		params["lambda"] = *in.Lambda
	}
	if in.Delta != nil {
		params["delta"] = *in.Delta
	}
	if in.Disabled {
		params["disabled"] = true
	}
	return params
}

// handleGragResolve implements the grag_resolve tool.
func (s *Server) handleGragResolve(ctx context.Context, req *sdk.CallToolRequest, args ResolveInput) (_ *sdk.CallToolResult, _ ResolveOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("grag_resolve", start, retErr, sanitizeToolParams("grag_resolve", runParams(args.Run)), "local")
	}()

	if err := s.toolLimiters.Check("grag_resolve"); err != nil {
		return nil, ResolveOutput{}, err
	}

	sched, err := s.buildSchedule(ctx, args.Run)
	if err != nil {
		return nil, ResolveOutput{}, err
	}

	return nil, ResolveOutput{
		Preset:     sched.Preset,
		Strength:   sched.Strength,
		Lambda:     sched.Base.Lambda,
		Delta:      sched.Base.Delta,
		Neutral:    !sched.Enabled || sched.Base.IsNeutral(),
		Advisories: sched.Advisories(),
	}, nil
}

// handleGragSchedule implements the grag_schedule tool.
func (s *Server) handleGragSchedule(ctx context.Context, req *sdk.CallToolRequest, args ScheduleInput) (_ *sdk.CallToolResult, _ ScheduleOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := runParams(args.Run)
		params["steps"] = args.Steps
		s.auditTool("grag_schedule", start, retErr, sanitizeToolParams("grag_schedule", params), "local")
	}()

	if err := s.toolLimiters.Check("grag_schedule"); err != nil {
		return nil, ScheduleOutput{}, err
	}

	steps := args.Steps
	if steps == 0 {
		steps = s.config.Control.Steps
	}
	if steps < 1 || steps > constants.MaxSteps {
		return nil, ScheduleOutput{}, models.NewConfigurationError("steps", steps,
			fmt.Sprintf("must be between 1 and %d", constants.MaxSteps))
	}

	sched, err := s.buildSchedule(ctx, args.Run)
	if err != nil {
		return nil, ScheduleOutput{}, err
	}

	edge := args.Edge
	if edge <= 0 {
		edge = defaultPreviewEdge
	}

	out := ScheduleOutput{
		Summary: sched.Summarize(),
		Layers:  sched.LayerPairs,
		Tiers:   sched.TierTable(steps),
		Edge:    edge,
		Table:   sched.StepTable(steps, edge),
	}
	if sched.Adaptive() {
		out.Multipliers = sched.Multipliers(steps)
	}
	return nil, out, nil
}

// handleGragPresets implements the grag_presets tool.
func (s *Server) handleGragPresets(ctx context.Context, req *sdk.CallToolRequest, args PresetsInput) (_ *sdk.CallToolResult, _ PresetsOutput, retErr error) {
	start := time.Now()
	action := strings.ToLower(strings.TrimSpace(args.Action))
	if action == "" {
		action = "list"
	}
	defer func() {
		scope := "local"
		if action == "save" || action == "delete" {
			scope = "global"
		}
		s.auditTool("grag_presets", start, retErr, sanitizeToolParams("grag_presets", map[string]interface{}{
			"action": action, "name": args.Name, "description": args.Description,
		}), scope)
	}()

	if err := s.toolLimiters.Check("grag_presets"); err != nil {
		return nil, PresetsOutput{}, err
	}

	out := PresetsOutput{Action: action, Backend: s.backend.String()}

	switch action {
	case "list":
		presets, err := store.List(ctx, s.presets)
		if err != nil {
			return nil, PresetsOutput{}, fmt.Errorf("failed to list presets: %w", err)
		}
		out.Presets = make([]PresetItem, 0, len(presets))
		for _, p := range presets {
			out.Presets = append(out.Presets, presetItem(p))
		}
		out.Count = len(out.Presets)
		out.Message = fmt.Sprintf("%d presets", out.Count)

	case "show":
		p, err := s.presets.Get(ctx, args.Name)
		if err != nil {
			return nil, PresetsOutput{}, fmt.Errorf("failed to get preset: %w", err)
		}
		if p == nil {
			return nil, PresetsOutput{}, fmt.Errorf("preset not found: %s", args.Name)
		}
		out.Preset = p
		out.Count = 1
		out.Message = p.String()

	case "save":
		if s.writeErr != nil {
			return nil, PresetsOutput{}, s.writeErr
		}
		strength := args.Strength
		if strength == 0 {
			strength = constants.DefaultStrength
		}
		p := models.Preset{
			Name:            sanitize.PresetName(args.Name),
			LambdaBase:      args.Lambda,
			DeltaBase:       args.Delta,
			StrengthDefault: strength,
			Category:        sanitize.PresetName(args.Category),
			Description:     sanitize.Text(args.Description),
			UseCase:         sanitize.Text(args.UseCase),
		}
		if err := s.presets.Save(ctx, p); err != nil {
			return nil, PresetsOutput{}, fmt.Errorf("failed to save preset: %w", err)
		}
		saved, err := s.presets.Get(ctx, p.Name)
		if err != nil {
			return nil, PresetsOutput{}, fmt.Errorf("failed to reload preset: %w", err)
		}
		out.Preset = saved
		out.Count = 1
		out.Message = fmt.Sprintf("Saved preset %q", p.Name)

	case "delete":
		if s.writeErr != nil {
			return nil, PresetsOutput{}, s.writeErr
		}
		if err := s.presets.Delete(ctx, args.Name); err != nil {
			return nil, PresetsOutput{}, fmt.Errorf("failed to delete preset: %w", err)
		}
		out.Message = fmt.Sprintf("Deleted preset %q", args.Name)

	default:
		return nil, PresetsOutput{}, fmt.Errorf("unknown action %q (valid: list, show, save, delete)", args.Action)
	}
	return nil, out, nil
}

func presetItem(p models.Preset) PresetItem {
	return PresetItem{
		Key:      p.Key,
		Name:     p.Name,
		Lambda:   p.LambdaBase,
		Delta:    p.DeltaBase,
		Strength: p.StrengthDefault,
		Category: p.Category,
		BuiltIn:  p.BuiltIn,
	}
}

// handleGragSimulate implements the grag_simulate tool.
func (s *Server) handleGragSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := runParams(args.Run)
		params["steps"] = args.Steps
		params["layers"] = args.Layers
		s.auditTool("grag_simulate", start, retErr, sanitizeToolParams("grag_simulate", params), "local")
	}()

	if err := s.toolLimiters.Check("grag_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	sched, err := s.buildSchedule(ctx, args.Run)
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	cfg := simulation.DefaultConfig()
	if args.Steps > 0 {
		cfg.Steps = args.Steps
	}
	if args.ImageTokens > 0 {
		cfg.ImageTokens = args.ImageTokens
	}
	if args.Seed != 0 {
		cfg.Seed = args.Seed
	}
	cfg.Resolutions = args.Resolutions
	if cfg.Steps > constants.MaxSteps {
		return nil, SimulateOutput{}, models.NewConfigurationError("steps", cfg.Steps,
			fmt.Sprintf("must be <= %d", constants.MaxSteps))
	}

	layers := args.Layers
	if layers == 0 {
		layers = min(sched.LayerCount(), maxSimulationLayers)
	}
	if layers < 1 || layers > maxSimulationLayers {
		return nil, SimulateOutput{}, models.NewConfigurationError("layers", layers,
			fmt.Sprintf("must be between 1 and %d", maxSimulationLayers))
	}

	result, err := simulation.Compare(ctx, s.controller, sched, cfg, layers)
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	out := SimulateOutput{
		Steps:          result.Steps,
		Layers:         result.Layers,
		Calls:          result.Calls,
		Reweighted:     result.Reweighted,
		Deviation:      result.Deviation,
		FinalDeviation: result.FinalDeviation,
		Restored:       result.Restored,
	}
	return nil, out, nil
}
