// Package i18n holds the translated strings shown to parents and drivers.
package i18n

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	BusArrivedHome       = "bus_arrived_home"
	StudentLeftHome      = "student_left_home"
	StudentBoardedBus    = "student_boarded_bus"
	StudentArrivedSafely = "student_arrived_safely"

	StatusHomeLabel     = "status_home"
	StatusInBusLabel    = "status_in_bus"
	StatusAtSchoolLabel = "status_at_school"

	StepHomeLabel     = "step_home"
	StepInBusLabel    = "step_in_bus"
	StepAtSchoolLabel = "step_at_school"

	clockAM = "clock_am"
	clockPM = "clock_pm"
)

var supported = []language.Tag{language.Arabic, language.English}

var entries = map[string][2]string{ // key -> {ar, en}
	BusArrivedHome:       {"وصل الباص للمنزل", "The bus arrived home"},
	StudentLeftHome:      {"تم خروج الطالب من المنزل", "The student left home"},
	StudentBoardedBus:    {"تم ركوب الطالب الباص", "The student boarded the bus"},
	StudentArrivedSafely: {"وصل الطالب للمدرسة بسلام", "The student arrived at school safely"},

	StatusHomeLabel:     {"في انتظار الباص", "Waiting for the bus"},
	StatusInBusLabel:    {"الطالب في الباص", "The student is on the bus"},
	StatusAtSchoolLabel: {"وصل للمدرسة", "Arrived at school"},

	StepHomeLabel:     {"في المنزل", "At home"},
	StepInBusLabel:    {"في الباص", "On the bus"},
	StepAtSchoolLabel: {"في المدرسة", "At school"},

	clockAM: {"ص", "AM"},
	clockPM: {"م", "PM"},
}

var (
	cat     = buildCatalog()
	matcher = language.NewMatcher(supported)
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.Arabic))
	for key, v := range entries {
		if err := b.SetString(language.Arabic, key, v[0]); err != nil {
			panic(fmt.Sprintf("i18n: %s: %v", key, err))
		}
		if err := b.SetString(language.English, key, v[1]); err != nil {
			panic(fmt.Sprintf("i18n: %s: %v", key, err))
		}
	}
	return b
}

// Localizer renders messages and clock times for one language.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New matches locale (e.g. "ar-SA", "en") against the supported languages.
// Unknown or empty locales fall back to Arabic.
func New(locale string) *Localizer {
	tag := language.Arabic
	if strings.TrimSpace(locale) != "" {
		if t, err := language.Parse(locale); err == nil {
			_, idx, conf := matcher.Match(t)
			if conf != language.No {
				tag = supported[idx]
			}
		}
	}
	return &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}
}

func (l *Localizer) Language() string { return l.tag.String() }

// Text returns the translation for key.
func (l *Localizer) Text(key string) string { return l.printer.Sprintf(key) }

var arabicDigits = strings.NewReplacer(
	"0", "٠", "1", "١", "2", "٢", "3", "٣", "4", "٤",
	"5", "٥", "6", "٦", "7", "٧", "8", "٨", "9", "٩",
)

// Clock formats t as a two-digit 12-hour clock with a day-period marker.
func (l *Localizer) Clock(t time.Time) string {
	period := clockAM
	if t.Hour() >= 12 {
		period = clockPM
	}
	s := t.Format("03:04") + " " + l.Text(period)
	if l.tag == language.Arabic {
		s = arabicDigits.Replace(s)
	}
	return s
}
