package appointments

import (
	"context"
	"fmt"
	"time"
)

// slotTemplate is the fixed list of daily booking windows: five two-hour
// slots and a final one-hour slot, 09:00 through 20:00.
var slotTemplate = []struct {
	startHour int
	endHour   int
}{
	{9, 11},
	{11, 13},
	{13, 15},
	{15, 17},
	{17, 19},
	{19, 20},
}

// AvailableSlots derives bookable windows for a doctor from the slot
// template for today and tomorrow, in the server's local offset. Slots
// already ended are omitted for today only. The result is recomputed on
// every call and never cached.
func (s *Service) AvailableSlots(ctx context.Context, doctorID int64) ([]TimeSlot, error) {
	ctx, span := tracer.Start(ctx, "appointments.available_slots")
	defer span.End()

	if _, err := s.dir.FindDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	started := s.now()
	now := started
	loc := now.Location()

	slots := make([]TimeSlot, 0, 2*len(slotTemplate))
	for day := 0; day < 2; day++ {
		date := now.AddDate(0, 0, day)
		year, month, dayOfMonth := date.Date()

		dayLabel := "Today"
		if day == 1 {
			dayLabel = "Tomorrow"
		}

		for _, w := range slotTemplate {
			slotStart := time.Date(year, month, dayOfMonth, w.startHour, 0, 0, 0, loc)
			slotEnd := time.Date(year, month, dayOfMonth, w.endHour, 0, 0, 0, loc)

			// Past slots are dropped for the current day only.
			if day == 0 && slotEnd.Before(now) {
				continue
			}

			booked, err := s.repo.DoctorOverlapExists(ctx, doctorID, slotStart, slotEnd)
			if err != nil {
				return nil, err
			}

			slots = append(slots, TimeSlot{
				Date:      fmt.Sprintf("%s (%s)", dayLabel, slotStart.Format("2006-01-02")),
				Time:      fmt.Sprintf("%02d:00 - %02d:00", w.startHour, w.endHour),
				StartTime: slotStart,
				EndTime:   slotEnd,
				Available: !booked,
			})
		}
	}

	s.metrics.ObserveAvailabilityLatency(time.Since(started).Seconds())
	s.logger.Debug("computed available slots", "doctor_id", doctorID, "count", len(slots))
	return slots, nil
}
