package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/omegabytes/carbonboard/compare"
	"github.com/omegabytes/carbonboard/equivalence"
	"github.com/omegabytes/carbonboard/hardware"
	"github.com/omegabytes/carbonboard/impact"
	"github.com/omegabytes/carbonboard/ledger"
	"github.com/omegabytes/carbonboard/tracker"
)

const barWidth = 30

// Grams formats a carbon quantity in gCO2eq.
func Grams(g float64) string {
	return fmt.Sprintf("%.4f gCO2eq", g)
}

// PrintEstimate writes the detailed breakdown of one estimate.
func PrintEstimate(w io.Writer, est impact.Estimate, eq equivalence.Equivalents) {
	var sb strings.Builder
	sb.WriteString(Title.Render("Carbon estimate"))
	sb.WriteString("\n\n")

	model := est.Model
	if !est.KnownModel {
		model += " " + Warning.Render("(unknown, default hardware profile)")
	}
	sb.WriteString(FormatKeyValue("Model", model) + "\n")
	sb.WriteString(FormatKeyValue("Hardware", fmt.Sprintf("%d x %s @ %.3f kW", est.Profile.DeviceCount, est.Profile.ChipType, est.Profile.DevicePowerKW)) + "\n")
	sb.WriteString(FormatKeyValue("Region", fmt.Sprintf("%s (%.3f kgCO2eq/kWh)", est.Region, est.IntensityKgPerKWh)) + "\n")
	sb.WriteString(FormatKeyValue("Elapsed", fmt.Sprintf("%.3f s", est.ElapsedSeconds)) + "\n")
	sb.WriteString(FormatKeyValue("Energy", fmt.Sprintf("%.6f kWh", est.EnergyKWh)) + "\n")
	sb.WriteString(FormatKeyValue("Operational", Grams(est.OperationalKg*1000)) + "\n")
	sb.WriteString(FormatKeyValue("Embodied", Grams(est.EmbodiedKg*1000)) + "\n")
	sb.WriteString(FormatKeyValue("Total", Bold.Render(Grams(est.TotalGrams))) + "\n\n")
	sb.WriteString(renderEquivalents(eq))

	fmt.Fprintln(w, Box.Render(sb.String()))
}

// PrintEntry writes one recorded call.
func PrintEntry(w io.Writer, e ledger.Entry) {
	var sb strings.Builder
	if e.Failed {
		sb.WriteString(Error.Bold(true).Render("Call failed"))
	} else {
		sb.WriteString(Title.Render("Response"))
	}
	sb.WriteString(Dim.Render(fmt.Sprintf("  %s / %s", e.Provider, e.Model)))
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(e.Response))
	sb.WriteString("\n\n")
	sb.WriteString(FormatKeyValue("Elapsed", fmt.Sprintf("%.3f s", e.ElapsedSeconds)))
	sb.WriteString("  ")
	sb.WriteString(FormatKeyValue("Carbon", Bold.Render(Grams(e.CarbonGrams))))

	box := Box
	if e.Failed {
		box = ErrorBox
	}
	fmt.Fprintln(w, box.Render(sb.String()))
}

// PrintReport writes the session overview: totals, per-model comparison and timeline.
func PrintReport(w io.Writer, sum tracker.Summary, models []compare.ModelSummary, timeline []compare.Point) {
	var sb strings.Builder
	sb.WriteString(Title.Render("Session report"))
	sb.WriteString("\n\n")

	if sum.Count == 0 {
		sb.WriteString(Dim.Render("No calls recorded yet."))
		fmt.Fprintln(w, Box.Render(sb.String()))
		return
	}

	sb.WriteString(FormatKeyValue("Calls", fmt.Sprintf("%d", sum.Count)) + "\n")
	sb.WriteString(FormatKeyValue("Total", Bold.Render(Grams(sum.TotalCarbonGrams))) + "\n")
	sb.WriteString(FormatKeyValue("Average", Grams(sum.AverageCarbonGrams)) + "\n")
	sb.WriteString(FormatKeyValue("Average elapsed", fmt.Sprintf("%.3f s", sum.AverageElapsedSeconds)) + "\n\n")
	sb.WriteString(renderEquivalents(sum.Equivalents))
	sb.WriteString("\n\n")

	sb.WriteString(SectionHeader.Render("Per model"))
	sb.WriteString("\n")
	var maxMean float64
	for _, m := range models {
		maxMean = max(maxMean, m.MeanCarbonGrams)
	}
	for _, m := range models {
		sb.WriteString(fmt.Sprintf("%s %s %s\n",
			renderBar(m.MeanCarbonGrams, maxMean, barWidth),
			Primary.Render(Grams(m.MeanCarbonGrams)),
			Dim.Render(fmt.Sprintf("%s (%d calls, %.3f s avg)", m.Model, m.CallCount, m.MeanElapsedSeconds)),
		))
	}

	sb.WriteString("\n")
	sb.WriteString(SectionHeader.Render("Timeline"))
	sb.WriteString("\n")
	for _, p := range timeline {
		sb.WriteString(fmt.Sprintf("%3d  %s  %s  %s\n",
			p.Call, Grams(p.CarbonGrams), Dim.Render("cumulative "+Grams(p.CumulativeGrams)), Secondary.Render(p.Model)))
	}

	fmt.Fprintln(w, Box.Render(strings.TrimRight(sb.String(), "\n")))
}

// ProviderModels is a provider and the models it serves.
type ProviderModels struct {
	Name      string
	Available bool
	Models    []string
}

// PrintModels writes the hardware catalog and the configured providers.
func PrintModels(w io.Writer, cat *hardware.Catalog, providers []ProviderModels) {
	var sb strings.Builder
	sb.WriteString(SectionHeader.Render("Hardware catalog"))
	sb.WriteString("\n")
	for _, id := range cat.Models() {
		p := cat.ProfileFor(id)
		sb.WriteString(fmt.Sprintf("%s %s\n", Bold.Render(id),
			Dim.Render(fmt.Sprintf("%d x %s @ %.3f kW, %s", p.DeviceCount, p.ChipType, p.DevicePowerKW, p.Region))))
	}
	fb := cat.Fallback()
	sb.WriteString(Muted.Render(fmt.Sprintf("other models: %d x %s @ %.3f kW, %s", fb.DeviceCount, fb.ChipType, fb.DevicePowerKW, fb.Region)))
	sb.WriteString("\n\n")

	sb.WriteString(SectionHeader.Render("Providers"))
	sb.WriteString("\n")
	for _, p := range providers {
		mark := Success.Render("✓")
		if !p.Available {
			mark = Warning.Render("✗")
		}
		sb.WriteString(fmt.Sprintf("%s %s %s\n", mark, Bold.Render(p.Name), Dim.Render(strings.Join(p.Models, ", "))))
	}

	fmt.Fprintln(w, strings.TrimRight(sb.String(), "\n"))
}

func renderEquivalents(eq equivalence.Equivalents) string {
	var sb strings.Builder
	sb.WriteString(SectionHeader.Render("Equivalent to"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %.2f h of a 10 W LED bulb\n", eq.LEDHours))
	sb.WriteString(fmt.Sprintf("  %.2f m driven by a combustion car\n", eq.CarMeters))
	sb.WriteString(fmt.Sprintf("  %.3f smartphone charges", eq.SmartphoneCharges))
	return sb.String()
}

func renderBar(value, maxValue float64, width int) string {
	filled := 0
	if maxValue > 0 {
		filled = int(value / maxValue * float64(width))
	}
	filled = min(max(filled, 0), width)
	return BarFilled.Render(strings.Repeat("█", filled)) + BarEmpty.Render(strings.Repeat("░", width-filled))
}
