package preset

import "fmt"

// Controller owns the live preset and the banks it is selected from.
// Listeners attach to the live preset once; selecting a preset copies
// values into it so they hear every change.
type Controller struct {
	current *Preset
	banks   []*Bank
	bank    int
	index   int
	ignored [ParamCount]bool
}

func NewController() *Controller {
	return &Controller{
		current: New(DefaultName),
		banks:   []*Bank{NewBank("default")},
	}
}

// CurrentPreset is the live preset. The pointer never changes.
func (c *Controller) CurrentPreset() *Preset { return c.current }
func (c *Controller) CurrentIndex() int      { return c.index }
func (c *Controller) CurrentBankIndex() int  { return c.bank }
func (c *Controller) Bank() *Bank            { return c.banks[c.bank] }
func (c *Controller) Banks() []*Bank         { return c.banks }

// SetIgnored keeps id at its current value across preset switches.
func (c *Controller) SetIgnored(id ParamID, ignored bool) {
	if id >= 0 && id < ParamCount {
		c.ignored[id] = ignored
	}
}

func (c *Controller) IsIgnored(id ParamID) bool {
	return id >= 0 && id < ParamCount && c.ignored[id]
}

// SetBanks replaces the bank list and selects the first bank.
func (c *Controller) SetBanks(banks []*Bank) {
	if len(banks) == 0 {
		banks = []*Bank{NewBank("default")}
	}
	c.banks = banks
	c.bank = 0
}

// LoadBank reads path and makes it the current bank, replacing any
// bank loaded from the same file. The live preset is reloaded from the
// new bank at the current index.
func (c *Controller) LoadBank(path string) error {
	b, err := LoadBank(path)
	if err != nil {
		return err
	}
	idx := -1
	for i, existing := range c.banks {
		if existing.Path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.banks = append(c.banks, b)
		idx = len(c.banks) - 1
	} else {
		c.banks[idx] = b
	}
	c.bank = idx
	c.SelectPreset(c.index)
	return nil
}

// SaveBank writes the current bank to path, or to its own path when
// path is empty.
func (c *Controller) SaveBank(path string) error {
	b := c.Bank()
	if path == "" {
		path = b.Path
	}
	if path == "" {
		return fmt.Errorf("preset: bank %q has no file", b.Name)
	}
	return b.Save(path)
}

// Commit stores the live preset into the current bank slot.
func (c *Controller) Commit() {
	c.Bank().Presets[c.index].CopyFrom(c.current)
}

// SelectPreset loads slot index of the current bank into the live preset.
// It reports false for an out-of-range index.
func (c *Controller) SelectPreset(index int) bool {
	return c.SelectBankPreset(c.bank, index)
}

// SelectBankPreset selects a bank and a slot within it.
func (c *Controller) SelectBankPreset(bank, index int) bool {
	if bank < 0 || bank >= len(c.banks) || index < 0 || index >= BankSize {
		return false
	}
	c.bank = bank
	c.index = index
	c.current.CopyFromIgnoring(c.banks[bank].Presets[index], &c.ignored)
	return true
}
