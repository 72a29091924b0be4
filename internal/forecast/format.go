package forecast

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// DateLayout is the persisted date column.
	DateLayout = "02.01.2006"
	// HourLayout is the persisted hour column.
	HourLayout = "15:04"
	// QueriedAtLayout is the persisted query timestamp column.
	QueriedAtLayout = "02.01.2006 15:04:05 MST"
)

// Columns is the header row of the delimited store.
var Columns = []string{
	"Ort",
	"Datum",
	"Vorhersage_Zeit",
	"Temperatur",
	"Luftfeuchte_%",
	"Wind_kmh",
	"Bedingung",
	"Bewoelkung_%",
	"Regen_Chance_%",
	"Niederschlag_mm",
	"Zeit_der_Abfrage",
}

// Formatter renders records with a fixed number locale. The locale is
// configuration; it is never detected from the environment.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

// NewFormatter builds a Formatter for a BCP 47 tag such as "de" or "en".
func NewFormatter(locale string) (Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return Formatter{}, fmt.Errorf("invalid number locale %q: %w", locale, err)
	}
	return Formatter{tag: tag, printer: message.NewPrinter(tag)}, nil
}

// Valid reports whether f was built by NewFormatter.
func (f Formatter) Valid() bool {
	return f.printer != nil
}

// Locale returns the configured tag.
func (f Formatter) Locale() string {
	return f.tag.String()
}

// Number formats v with the given number of decimals.
func (f Formatter) Number(v float64, decimals int) string {
	return f.printer.Sprintf(fmt.Sprintf("%%.%df", decimals), v)
}

// Row renders r in Columns order.
func (f Formatter) Row(r Record) []string {
	return []string{
		r.Location,
		r.Slot.Format(DateLayout),
		r.Slot.Format(HourLayout),
		f.Number(r.TemperatureC, 1),
		f.Number(r.HumidityPct, 0),
		f.Number(r.WindSpeedKmh, 1),
		string(r.Condition),
		f.Number(r.CloudCoverPct, 0),
		f.Number(r.PrecipitationProbability, 0),
		f.Number(r.PrecipitationMm, 1),
		r.QueriedAt.In(r.Slot.Location()).Format(QueriedAtLayout),
	}
}
