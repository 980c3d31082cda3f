package state

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Markdown section extraction and file-specific parsers for the .planning/
// files GSD maintains. The parsers are deliberately tolerant: missing
// sections produce zero values, never errors, because the files are written
// by an agent and drift in shape over time.

var (
	checkboxRe    = regexp.MustCompile(`(?m)^-\s+\[([ xX])\]\s+(.+)$`)
	phaseLineRe   = regexp.MustCompile(`Phase:\s*(\d+)\s+of\s+\d+\s*(?:\(([^)]+)\))?`)
	planLineRe    = regexp.MustCompile(`Plan:\s*(\d+)\s+of\s+(\d+)`)
	activityRe    = regexp.MustCompile(`Last activity:\s*(.+)`)
	phaseHeaderRe = regexp.MustCompile(`(?ms)^###\s+Phase\s+(\d+):\s+([^\n]+)\n(.*?)(?:^###\s|\z)`)
	goalRe        = regexp.MustCompile(`\*\*Goal\*\*:\s*(.+)`)
	reqListRe     = regexp.MustCompile(`\*\*Requirements\*\*:\s*(.+)`)
	phaseNumRe    = regexp.MustCompile(`^(\d+)\.`)
	plansCellRe   = regexp.MustCompile(`^(\d+)/(\d+)`)
	h1Re          = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	boldItemRe    = regexp.MustCompile(`^-\s+\*\*[^*]+\*\*:\s*(.+)`)
	reqItemRe     = regexp.MustCompile(`(?m)^-\s+\[([ xX])\]\s+\*\*([A-Z]+-\d+)\*\*:\s*(.+)$`)
	digitsRe      = regexp.MustCompile(`(\d+)`)
)

// extractSection returns the markdown content under a heading of the given
// level, up to the next same-or-higher-level heading, or "" if not found.
func extractSection(content, header string, level int) string {
	prefix := strings.Repeat("#", level)
	pattern := fmt.Sprintf(`(?ms)^%s\s+%s\s*\n(.*?)(?:^#{1,%d}\s|\z)`,
		regexp.QuoteMeta(prefix), regexp.QuoteMeta(header), level)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ""
	}
	if m := re.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

type checkboxItem struct {
	checked bool
	text    string
}

func parseCheckboxItems(section string) []checkboxItem {
	var items []checkboxItem
	for _, m := range checkboxRe.FindAllStringSubmatch(section, -1) {
		items = append(items, checkboxItem{
			checked: strings.EqualFold(m[1], "x"),
			text:    strings.TrimSpace(m[2]),
		})
	}
	return items
}

// parseTableRows parses a GFM table into row maps keyed by the header row.
func parseTableRows(section string) []map[string]string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(section), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) < 3 {
		return nil
	}

	headerIdx := -1
	for i, line := range lines {
		if strings.Contains(line, "|") {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}
	headers := splitTableCells(lines[headerIdx])

	var rows []map[string]string
	for _, line := range lines[headerIdx+2:] { // skip the separator row
		if !strings.Contains(line, "|") {
			continue
		}
		cells := splitTableCells(line)
		row := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(cells) {
				row[h] = cells[j]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func splitTableCells(line string) []string {
	trimmed := strings.Trim(line, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

// ParseConfigJSON parses config.json content, keeping defaults for fields
// the file does not set.
func ParseConfigJSON(content []byte) (ProjectConfig, error) {
	cfg := DefaultProjectConfig()
	if err := json.Unmarshal(content, &cfg); err != nil {
		return ProjectConfig{}, fmt.Errorf("parse config.json: %w", err)
	}
	return cfg, nil
}

// ParseStateMD extracts the current position, blockers, and decisions from
// STATE.md.
func ParseStateMD(content string) ProjectState {
	st := ProjectState{
		CurrentPhaseName: "unknown",
		Blockers:         []string{},
		Decisions:        []string{},
	}
	if strings.TrimSpace(content) == "" {
		return st
	}

	if position := extractSection(content, "Current Position", 2); position != "" {
		if m := phaseLineRe.FindStringSubmatch(position); m != nil {
			st.CurrentPhase, _ = strconv.Atoi(m[1])
			if name := strings.TrimSpace(m[2]); name != "" {
				st.CurrentPhaseName = name
			}
		}
		if m := planLineRe.FindStringSubmatch(position); m != nil {
			st.PlansComplete, _ = strconv.Atoi(m[1])
			st.PlansTotal, _ = strconv.Atoi(m[2])
		}
		if m := activityRe.FindStringSubmatch(position); m != nil {
			st.LastActivity = strings.TrimSpace(m[1])
		}
	}

	if section := extractSection(content, "Blockers/Concerns", 3); section != "" {
		for _, line := range strings.Split(section, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "- ") && line != "- None yet." {
				st.Blockers = append(st.Blockers, strings.TrimSpace(line[2:]))
			}
		}
	}
	if section := extractSection(content, "Decisions", 3); section != "" {
		for _, line := range strings.Split(section, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "- ") {
				st.Decisions = append(st.Decisions, strings.TrimSpace(line[2:]))
			}
		}
	}
	return st
}

// ParseRoadmapMD extracts the overview and per-phase details from
// ROADMAP.md. Explicit values in the Progress table override counts and
// status inferred from the phase bodies.
func ParseRoadmapMD(content string) RoadmapInfo {
	if strings.TrimSpace(content) == "" {
		return RoadmapInfo{}
	}
	info := RoadmapInfo{Overview: extractSection(content, "Overview", 2)}

	if details := extractSection(content, "Phase Details", 2); details != "" {
		// Regexp alternation does not rewind for adjacent phases, so walk
		// heading indices instead.
		for _, block := range splitPhaseBlocks(details) {
			m := phaseHeaderRe.FindStringSubmatch(block)
			if m == nil {
				continue
			}
			number, _ := strconv.Atoi(m[1])
			phase := PhaseInfo{
				Number:       number,
				Name:         strings.TrimSpace(m[2]),
				Requirements: []string{},
				Status:       "Not started",
			}
			body := m[3]
			if gm := goalRe.FindStringSubmatch(body); gm != nil {
				phase.Goal = strings.TrimSpace(gm[1])
			}
			if rm := reqListRe.FindStringSubmatch(body); rm != nil {
				for _, r := range strings.Split(rm[1], ",") {
					if r = strings.TrimSpace(r); r != "" {
						phase.Requirements = append(phase.Requirements, r)
					}
				}
			}
			if items := parseCheckboxItems(body); len(items) > 0 {
				phase.PlansTotal = len(items)
				for _, it := range items {
					if it.checked {
						phase.PlansComplete++
					}
				}
			}
			switch {
			case phase.PlansComplete > 0 && phase.PlansComplete >= phase.PlansTotal:
				phase.Status = "Complete"
			case phase.PlansComplete > 0:
				phase.Status = "In Progress"
			}
			info.Phases = append(info.Phases, phase)
		}
	}

	if progress := extractSection(content, "Progress", 2); progress != "" {
		for _, row := range parseTableRows(progress) {
			nm := phaseNumRe.FindStringSubmatch(row["Phase"])
			if nm == nil {
				continue
			}
			num, _ := strconv.Atoi(nm[1])
			for i := range info.Phases {
				if info.Phases[i].Number != num {
					continue
				}
				if pm := plansCellRe.FindStringSubmatch(row["Plans Complete"]); pm != nil {
					info.Phases[i].PlansComplete, _ = strconv.Atoi(pm[1])
					info.Phases[i].PlansTotal, _ = strconv.Atoi(pm[2])
				}
				if status := strings.TrimSpace(row["Status"]); status != "" && status != "-" {
					info.Phases[i].Status = status
				}
				if completed := strings.TrimSpace(row["Completed"]); completed != "" && completed != "-" {
					info.Phases[i].CompletedDate = completed
				}
			}
		}
	}
	return info
}

// splitPhaseBlocks splits a Phase Details section into one chunk per
// "### Phase N:" heading.
func splitPhaseBlocks(details string) []string {
	indices := regexp.MustCompile(`(?m)^###\s+Phase\s+\d+:`).FindAllStringIndex(details, -1)
	blocks := make([]string, 0, len(indices))
	for i, loc := range indices {
		end := len(details)
		if i+1 < len(indices) {
			end = indices[i+1][0]
		}
		blocks = append(blocks, details[loc[0]:end])
	}
	return blocks
}

// ParseRequirementsMD extracts checkbox requirements with bold IDs from the
// v1 Requirements section, cross-referencing the traceability table for
// phase assignments.
func ParseRequirementsMD(content string) []RequirementInfo {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	phaseMap := map[string]int{}
	if trace := extractSection(content, "Traceability", 2); trace != "" {
		for _, row := range parseTableRows(trace) {
			id := strings.TrimSpace(row["Requirement"])
			if m := digitsRe.FindStringSubmatch(row["Phase"]); m != nil {
				phaseMap[id], _ = strconv.Atoi(m[1])
			}
		}
	}

	var requirements []RequirementInfo
	if section := extractSection(content, "v1 Requirements", 2); section != "" {
		for _, m := range reqItemRe.FindAllStringSubmatch(section, -1) {
			requirements = append(requirements, RequirementInfo{
				ID:          m[2],
				Description: strings.TrimSpace(m[3]),
				Phase:       phaseMap[m[2]],
				Completed:   strings.EqualFold(m[1], "x"),
			})
		}
	}
	return requirements
}

// ParseProjectMD extracts the project name, description, core value, and
// constraints from PROJECT.md.
func ParseProjectMD(content string) ProjectInfo {
	info := ProjectInfo{Name: "unknown", Description: "unknown", Constraints: []string{}}
	if strings.TrimSpace(content) == "" {
		return info
	}

	if m := h1Re.FindStringSubmatch(content); m != nil {
		info.Name = strings.TrimSpace(m[1])
	}
	if section := extractSection(content, "What This Is", 2); section != "" {
		info.Description = section
	}
	if section := extractSection(content, "Core Value", 2); section != "" {
		info.CoreValue = section
	}
	if section := extractSection(content, "Constraints", 2); section != "" {
		for _, line := range strings.Split(section, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "- **"):
				if m := boldItemRe.FindStringSubmatch(line); m != nil {
					info.Constraints = append(info.Constraints, strings.TrimSpace(m[1]))
				} else {
					info.Constraints = append(info.Constraints, strings.TrimSpace(line[2:]))
				}
			case strings.HasPrefix(line, "- "):
				info.Constraints = append(info.Constraints, strings.TrimSpace(line[2:]))
			}
		}
	}
	return info
}
