package carousel

import (
	"maps"
	"slices"
	"strings"

	"github.com/hazyhaar/carrousel/modules"
)

// Style kinds.
const (
	StyleStackImg   = "stack-img"
	StyleStackImgBg = "stack-img-bg"
	StyleTextOnly   = "text-only"
	StyleTitle      = "title"
	StyleSplitImg   = "split-img"
	// StyleCustom layouts carry an explicit module slide instead of
	// content fields. Only the batch API accepts them.
	StyleCustom = "custom"
)

type style struct {
	requiresImage bool
	modules       []string
	// data returns per-module data for the style, before content is added.
	data func(l TemplateLayout) map[string]modules.Data
}

var styles = map[string]style{
	StyleStackImg: {
		requiresImage: true,
		modules:       []string{modules.CanvasID, modules.ImageID, modules.TextID},
		data: func(l TemplateLayout) map[string]modules.Data {
			return map[string]modules.Data{
				modules.ImageID: {"src": l.Image, "region": "top", "heightPercent": 55},
				modules.TextID:  {"region": "bottom", "verticalAlign": "top"},
			}
		},
	},
	StyleStackImgBg: {
		requiresImage: true,
		modules:       []string{modules.CanvasID, modules.BackgroundImageID, modules.GradientOverlayID, modules.TextID},
		data: func(l TemplateLayout) map[string]modules.Data {
			return map[string]modules.Data{
				modules.BackgroundImageID: {"src": l.Image},
				modules.GradientOverlayID: {"from": "rgba(0,0,0,0)", "to": "rgba(0,0,0,0.85)", "coverage": 70},
				modules.TextID:            {"region": "full", "verticalAlign": "bottom", "color": "#ffffff"},
			}
		},
	},
	StyleTextOnly: {
		modules: []string{modules.CanvasID, modules.TextID},
		data: func(TemplateLayout) map[string]modules.Data {
			return map[string]modules.Data{modules.TextID: {"region": "full"}}
		},
	},
	StyleTitle: {
		modules: []string{modules.CanvasID, modules.TextID},
		data: func(TemplateLayout) map[string]modules.Data {
			return map[string]modules.Data{
				modules.TextID: {"region": "full", "align": "center", "verticalAlign": "center", "titleSize": 110},
			}
		},
	},
	StyleSplitImg: {
		requiresImage: true,
		modules:       []string{modules.CanvasID, modules.SplitImageID, modules.TextID},
		data: func(l TemplateLayout) map[string]modules.Data {
			return map[string]modules.Data{
				modules.SplitImageID: {"src": l.Image, "side": "left"},
				modules.TextID:       {"region": "right"},
			}
		},
	},
	StyleCustom: {},
}

var styleAliases = map[string]string{
	"stackimg":   StyleStackImg,
	"stackimgbg": StyleStackImgBg,
	"textonly":   StyleTextOnly,
	"texto":      StyleTextOnly,
	"titulo":     StyleTitle,
	"capa":       StyleTitle,
	"splitimg":   StyleSplitImg,
}

// canonicalStyle maps spelling variants ("Stack_Img", "stackimg") to a
// style kind. Unknown names are returned lowercased.
func canonicalStyle(s string) string {
	k := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if _, ok := styles[k]; ok {
		return k
	}
	if a, ok := styleAliases[strings.ReplaceAll(k, "-", "")]; ok {
		return a
	}
	return k
}

// StyleKinds lists the style kinds accepted in carousel input.
func StyleKinds() []string {
	return slices.DeleteFunc(slices.Sorted(maps.Keys(styles)), func(k string) bool { return k == StyleCustom })
}
