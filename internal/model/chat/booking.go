package chat

import "strings"

// BookingDraft is the appointment request collected by the booking form.
type BookingDraft struct {
	Name    string `json:"name" yaml:"name"`
	Email   string `json:"email" yaml:"email"`
	Phone   string `json:"phone" yaml:"phone"`
	Service string `json:"service" yaml:"service"`
	Date    string `json:"date" yaml:"date"`
	Time    string `json:"time" yaml:"time"`
}

// Normalize trims surrounding whitespace from every field.
func (d BookingDraft) Normalize() BookingDraft {
	return BookingDraft{
		Name:    strings.TrimSpace(d.Name),
		Email:   strings.TrimSpace(d.Email),
		Phone:   strings.TrimSpace(d.Phone),
		Service: strings.TrimSpace(d.Service),
		Date:    strings.TrimSpace(d.Date),
		Time:    strings.TrimSpace(d.Time),
	}
}

// Missing lists the JSON names of fields that are blank.
func (d BookingDraft) Missing() []string {
	fields := []struct {
		name  string
		value string
	}{
		{"name", d.Name},
		{"email", d.Email},
		{"phone", d.Phone},
		{"service", d.Service},
		{"date", d.Date},
		{"time", d.Time},
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Merge returns d with every non-blank field of update applied on top.
func (d BookingDraft) Merge(update BookingDraft) BookingDraft {
	pick := func(cur, next string) string {
		if strings.TrimSpace(next) != "" {
			return next
		}
		return cur
	}
	return BookingDraft{
		Name:    pick(d.Name, update.Name),
		Email:   pick(d.Email, update.Email),
		Phone:   pick(d.Phone, update.Phone),
		Service: pick(d.Service, update.Service),
		Date:    pick(d.Date, update.Date),
		Time:    pick(d.Time, update.Time),
	}
}
