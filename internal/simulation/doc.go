// Package simulation runs synthetic sampling loops against an in-process
// host model so the patch lifecycle and the reweighting can be observed end
// to end without a real diffusion backend.
//
// Sample and SamplePatched drive the loop: every step visits every attention
// layer with the step's progress and resolution, feeding the joint
// text+image sequence through attention with a residual update. The patched
// variant brackets the loop in a patch session, so the controller's restore
// guarantees hold for whatever happens inside.
//
// Runner wraps the loop as a test harness. Scenarios describe the control
// config, the host shape and any disruption (injected errors, panics,
// cancellation, structural changes) and the result carries both traces plus
// the diagnostics recorded along the way.
//
// Usage:
//
//	func TestStableRun(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:     "stable",
//	        Control:  simulation.PresetControl("Paper: Balanced", 1.0, 8),
//	        Preset:   &paperBalanced,
//	        Baseline: true,
//	    })
//	    simulation.AssertRestored(t, result)
//	    simulation.AssertDeviatesFromBaseline(t, result, 1e-6)
//	}
package simulation
