package domain

// Option is a selectable entry of a drop-down control.
type Option struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	SortOrder *int   `json:"sortOrder,omitempty"`
}

// BlankOption is the synthetic empty entry every option list starts with.
func BlankOption() Option {
	return Option{Code: "", Name: ""}
}

// OptionFromItem builds an option from an item's Code, Name and Sort Order fields.
func OptionFromItem(it *Item) Option {
	return OptionWithCode(it, it.Code())
}

// OptionWithCode builds an option for an item but keeps the given code.
func OptionWithCode(it *Item, code string) Option {
	opt := Option{Code: code, Name: it.Name()}
	if n, ok := it.SortKey(); ok {
		opt.SortOrder = &n
	}
	return opt
}
