package profile

// Profile describes the assistant and the company it speaks for. The greeting,
// canned replies, system framing and contact fallbacks are all derived from it.
type Profile struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Company      string   `json:"company"`
	Title        string   `json:"title"`
	Tone         string   `json:"tone"`
	Scope        string   `json:"scope"`
	OpeningLine  string   `json:"openingLine"`
	BookingURL   string   `json:"bookingUrl"`
	ContactEmail string   `json:"contactEmail"`
	ContactPhone string   `json:"contactPhone"`
	Services     []string `json:"services"`
	TimeSlots    []string `json:"timeSlots"`
}

// Seed returns the profile of the Novatos AI site assistant.
func Seed() Profile {
	return Profile{
		ID:           "novatos-assistant",
		Name:         "Novatos AI Assistant",
		Company:      "Novatos AI",
		Title:        "AI automation for dental clinics",
		Tone:         "conversational, helpful, professional",
		Scope:        "Novatos AI services, features, pricing plans, onboarding and demo bookings for dental practices",
		OpeningLine:  "Hi! I'm your AI assistant from Novatos AI. I can help you learn about our AI automation services for dental clinics or book a demo. What can I help you with today?",
		BookingURL:   "https://calendly.com/ainovatos/30min",
		ContactEmail: "ainovatos@gmail.com",
		ContactPhone: "+92 (300) 123-4567",
		Services: []string{
			"AI Chatbot Development",
			"Appointment Booking Automation",
			"Lead Generation System",
			"CRM Integration",
			"Customer Support Automation",
			"Multi-Platform Deployment",
			"Custom AI Solutions",
		},
		TimeSlots: []string{
			"9:00 AM", "10:00 AM", "11:00 AM", "12:00 PM",
			"1:00 PM", "2:00 PM", "3:00 PM", "4:00 PM", "5:00 PM",
		},
	}
}
