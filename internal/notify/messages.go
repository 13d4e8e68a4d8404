package notify

import (
	"fmt"

	"fleetbook/internal/db"
)

// statusTranslation translates a reservation status for the customer's language.
func statusTranslation(status, lang string) string {
	switch lang {
	case "es":
		switch status {
		case db.StatusPending:
			return "pendiente"
		case db.StatusConfirmed:
			return "confirmada"
		case db.StatusCompleted:
			return "finalizada"
		case db.StatusCancelled, db.StatusAutoCancelled:
			return "cancelada"
		}
	case "it":
		switch status {
		case db.StatusPending:
			return "in attesa"
		case db.StatusConfirmed:
			return "confermata"
		case db.StatusCompleted:
			return "conclusa"
		case db.StatusCancelled, db.StatusAutoCancelled:
			return "annullata"
		}
	}
	switch status {
	case db.StatusAutoCancelled:
		return "cancelled"
	}
	return status
}

// Message is the rendered customer notification.
type Message struct {
	Subject string
	Body    string
	SMS     string
}

const dateFormat = "02 Jan 2006"

// Compose renders the email and SMS texts for an event in the event's language.
func Compose(ev Event) Message {
	status := statusTranslation(ev.Status, ev.Language)
	start := ev.StartDate.Format(dateFormat)
	end := ev.EndDate.Format(dateFormat)
	code := shortCode(ev.ReservationID)

	switch ev.Language {
	case "es":
		return Message{
			Subject: fmt.Sprintf("Tu reserva está %s - Código: %s", status, code),
			Body: fmt.Sprintf("Hola %s,\n\nTu reserva está %s.\n\nCódigo de reserva: %s\nDesde: %s\nHasta: %s\nTotal: %.2f\n",
				ev.GuestName, status, code, start, end, ev.TotalPrice),
			SMS: fmt.Sprintf("Fleetbook: ¡Tu reserva %s está %s!\nRetiro: %s.", code, status, start),
		}
	case "it":
		return Message{
			Subject: fmt.Sprintf("La tua prenotazione è %s - Codice: %s", status, code),
			Body: fmt.Sprintf("Ciao %s,\n\nLa tua prenotazione è %s.\n\nCodice prenotazione: %s\nDal: %s\nAl: %s\nTotale: %.2f\n",
				ev.GuestName, status, code, start, end, ev.TotalPrice),
			SMS: fmt.Sprintf("Fleetbook: La tua prenotazione %s è %s!\nRitiro: %s.", code, status, start),
		}
	default:
		return Message{
			Subject: fmt.Sprintf("Your reservation is %s - Code: %s", status, code),
			Body: fmt.Sprintf("Hello %s,\n\nYour reservation is %s.\n\nReservation code: %s\nFrom: %s\nTo: %s\nTotal: %.2f\n",
				ev.GuestName, status, code, start, end, ev.TotalPrice),
			SMS: fmt.Sprintf("Fleetbook: Reservation %s is %s!\nPickup: %s.", code, status, start),
		}
	}
}

func shortCode(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
