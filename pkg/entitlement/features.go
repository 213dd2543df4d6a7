package entitlement

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Gated feature keys shared between catalog data and call sites.
// Adding a gated capability means adding its key here and to every plan.
const (
	FeatureExamsPerMonth  = "provas_mes"        // quota: exams generated per month
	FeatureWorkspaces     = "workspaces"        // quota: workspaces owned
	FeatureNotes          = "notas"             // quota: notes stored
	FeatureQRAttendance   = "qr_chamada"        // bool: QR code attendance
	FeatureDocumentEditor = "editor_documentos" // tier or bool: document editor level
	FeatureSupport        = "suporte"           // tier or bool: support level
)

var featureLabels = map[string]string{
	FeatureExamsPerMonth:  "Provas por mês",
	FeatureWorkspaces:     "Workspaces",
	FeatureNotes:          "Notas",
	FeatureQRAttendance:   "Chamada por QR Code",
	FeatureDocumentEditor: "Editor de documentos",
	FeatureSupport:        "Suporte",
}

// tierOrder ranks the known tier labels of a feature, lowest first.
var tierOrder = map[string][]string{
	FeatureDocumentEditor: {"basico", "completo"},
	FeatureSupport:        {"email", "prioritario", "dedicado"},
}

// TierRank returns the position of tier among the known levels of feature,
// or -1 when either is not ranked.
func TierRank(feature, tier string) int {
	return slices.Index(tierOrder[feature], tier)
}

// Label returns the human-readable label for a feature key. Unknown keys are
// humanized: "advanced_reports" becomes "Advanced Reports".
func Label(feature string) string {
	if l, ok := featureLabels[feature]; ok {
		return l
	}
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(feature))
	// Casers are stateful, so one is built per call.
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

// QuotaFeatures lists the keys whose values are usage quotas.
func QuotaFeatures() []string {
	return []string{FeatureExamsPerMonth, FeatureWorkspaces, FeatureNotes}
}

// IsQuotaFeature reports whether feature only accepts quota values.
func IsQuotaFeature(feature string) bool {
	switch feature {
	case FeatureExamsPerMonth, FeatureWorkspaces, FeatureNotes:
		return true
	}
	return false
}

// Features lists every gated feature key in display order.
func Features() []string {
	return []string{
		FeatureExamsPerMonth,
		FeatureWorkspaces,
		FeatureNotes,
		FeatureQRAttendance,
		FeatureDocumentEditor,
		FeatureSupport,
	}
}
