package scenefile

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// hclFile is the top-level structure of a scene file.
type hclFile struct {
	Scenes []*hclScene `hcl:"scene,block"`
}

type hclScene struct {
	Name      string         `hcl:"name,label"`
	TimeRange *hclTimeRange  `hcl:"time_range,block"`
	Variables []*hclVariable `hcl:"variable,block"`
	Body      hcl.Body       `hcl:",body"`
}

type hclTimeRange struct {
	From     string `hcl:"from,optional"`
	To       string `hcl:"to,optional"`
	TimeZone string `hcl:"timezone,optional"`
}

type hclVariable struct {
	Name        string `hcl:"name,label"`
	Type        string `hcl:"type"`
	Label       string `hcl:"label,optional"`
	SkipURLSync bool   `hcl:"skip_url_sync,optional"`

	// Value is a string or a list of strings.
	Value cty.Value `hcl:"value,optional"`

	Query        string `hcl:"query,optional"`
	Regex        string `hcl:"regex,optional"`
	Engine       string `hcl:"engine,optional"`
	Sort         string `hcl:"sort,optional"`
	Refresh      string `hcl:"refresh,optional"`
	Multi        bool   `hcl:"multi,optional"`
	IncludeAll   bool   `hcl:"include_all,optional"`
	AllValue     string `hcl:"all_value,optional"`
	DefaultToAll bool   `hcl:"default_to_all,optional"`

	Intervals       []string `hcl:"intervals,optional"`
	Auto            bool     `hcl:"auto,optional"`
	AutoStepCount   int      `hcl:"auto_step_count,optional"`
	AutoMinInterval string   `hcl:"auto_min_interval,optional"`

	Plugin        string `hcl:"plugin,optional"`
	DefaultOption bool   `hcl:"default_option,optional"`

	Options []string     `hcl:"options,optional"`
	Filters []*hclFilter `hcl:"filter,block"`

	Body hcl.Body `hcl:",body"`
}

type hclFilter struct {
	Key      string `hcl:"key"`
	Operator string `hcl:"operator,optional"`
	Value    string `hcl:"value"`
}

// subject points diagnostics at the opening brace of a block.
func subject(body hcl.Body) *hcl.Range {
	if body == nil {
		return nil
	}
	r := body.MissingItemRange()
	return &r
}
