package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"guardians/internal/models"
)

// guardianPIDLimit marks the low pid range treated as core OS processes
const guardianPIDLimit = 100

// enemyNames are lowercased substrings of office and productivity apps
var enemyNames = []string{"discord", "word", "excel", "powerpoint", "notepad", "calc"}

// creatureNames is the cosmetic label table, keyed by lowercased raw name
var creatureNames = map[string]string{
	"chrome.exe":   "Fire Dragon",
	"explorer.exe": "Forest Guardian",
	"svchost.exe":  "Ancestral Spirit",
	"system":       "Shadow King",
	"idle":         "Peaceful Spirit",
	"python.exe":   "Dark Mage",
	"java.exe":     "Mystic Knight",
	"steam.exe":    "Summoner",
}

// Classify derives the three-way tag. It is computed per snapshot since the
// OS may reuse a pid for an unrelated process.
func Classify(rec models.ProcessRecord) models.Classification {
	if rec.PID < guardianPIDLimit {
		return models.ClassGuardians
	}
	name := strings.ToLower(rec.Name)
	for _, enemy := range enemyNames {
		if strings.Contains(name, enemy) {
			return models.ClassEnemies
		}
	}
	return models.ClassAllies
}

// CPUPercent converts a cumulative fraction into a percentage in [0, 100]
func CPUPercent(fraction float64) float64 {
	if math.IsNaN(fraction) || fraction <= 0 {
		return 0
	}
	return math.Min(fraction*100, 100)
}

// DisplayName returns the label shown for name, or name itself
func DisplayName(name string) string {
	if label, ok := creatureNames[strings.ToLower(name)]; ok {
		return label
	}
	return name
}

// FormatBytes renders a byte count with binary units, e.g. "1.5 MB"
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatStartTime renders epoch millis in local time, "N/A" when unknown
func FormatStartTime(millis int64) string {
	if millis <= 0 {
		return "N/A"
	}
	return time.UnixMilli(millis).Format("2006-01-02 15:04:05")
}

// NewProjectedRow applies every display derivation to rec
func NewProjectedRow(rec models.ProcessRecord) models.ProjectedRow {
	return models.ProjectedRow{
		PID:             rec.PID,
		ParentPID:       rec.ParentPID,
		Name:            rec.Name,
		DisplayName:     DisplayName(rec.Name),
		CPUPercent:      CPUPercent(rec.CPUFraction),
		ResidentMemory:  rec.ResidentMemory,
		Memory:          FormatBytes(rec.ResidentMemory),
		State:           rec.State,
		Classification:  Classify(rec),
		StartTimeMillis: rec.StartTimeMillis,
		ExecutablePath:  rec.ExecutablePath,
	}
}

// NewProcessDetails is the row plus a human readable start time
func NewProcessDetails(rec models.ProcessRecord) models.ProcessDetails {
	return models.ProcessDetails{
		ProjectedRow: NewProjectedRow(rec),
		StartTime:    FormatStartTime(rec.StartTimeMillis),
	}
}
