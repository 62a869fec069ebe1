package schema

// Field declares one indicator column consumed by the sell model.
type Field struct {
	Name     string
	Required bool
}

// Fields lists every indicator column in model order. The ordering is part of
// the model contract: the trained ensemble expects its feature vector laid out
// as OpenPrefix-ed fields in this order followed by CurrentPrefix-ed fields in
// this order. Both pairing and scoring consume this list; do not duplicate it.
var Fields = []Field{
	{Name: "open", Required: true},
	{Name: "high", Required: true},
	{Name: "low", Required: true},
	{Name: "close", Required: true},
	{Name: "volume", Required: true},
	{Name: "macd"},
	{Name: "macd_signal"},
	{Name: "macd_histogram"},
	{Name: "rsi"},
	{Name: "rsi_sma"},
	{Name: "ema_100"},
	{Name: "ema_200"},
	{Name: "atr"},
	{Name: "ema_ratio"},
	{Name: "macd_histogram_x_atr"},
	{Name: "buy_sell_pressure_x_ema_ratio"},
	{Name: "buy_sell_pressure"},
	{Name: "relative_volume"},
	{Name: "quote_volume_ratio"},
	{Name: "rsi_x_relative_volume"},
}

const (
	// OpenPrefix namespaces indicators captured when the position was opened.
	OpenPrefix = "buy_"
	// CurrentPrefix namespaces indicators from the latest snapshot.
	CurrentPrefix = "sell_"
)

// ColumnNames returns the unprefixed indicator column names in model order.
func ColumnNames() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// ModelFeatures returns the full prefixed feature list in the order the model
// expects: every open-side feature, then every current-side feature.
func ModelFeatures() []string {
	features := make([]string, 0, 2*len(Fields))
	for _, f := range Fields {
		features = append(features, OpenPrefix+f.Name)
	}
	for _, f := range Fields {
		features = append(features, CurrentPrefix+f.Name)
	}
	return features
}

// NumModelFeatures returns the width of the model feature vector.
func NumModelFeatures() int {
	return 2 * len(Fields)
}
