package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	"github.com/smallbiznis/sparks/internal/payload"
	roomdomain "github.com/smallbiznis/sparks/internal/room/domain"
)

var (
	inTextDate  = regexp.MustCompile(`(20\d{2})[-/](\d{1,2})[-/](\d{1,2})`)
	amountToken = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
)

// Classify derives a room's funnel record from its message history. It is
// pure: the same room, messages and keyword snapshot always give the same
// record. ID, CreatedAt and UpdatedAt are left for the caller.
//
// Each stage scans the whole history on its own and the first qualifying
// message wins, so stages may be found in any chronological order.
func Classify(room roomdomain.Room, msgs []roomdomain.Message, keywords keyworddomain.Snapshot, loc *time.Location) (Record, error) {
	if len(msgs) == 0 {
		return Record{}, ErrNoMessages
	}
	if loc == nil {
		loc = time.UTC
	}

	ordered := make([]roomdomain.Message, len(msgs))
	copy(ordered, msgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	rec := Record{
		RoomID:  room.ID,
		RoomKey: room.RoomKey,
		Channel: room.Channel,
	}

	leadDate, openingKeyword := leadStage(ordered, keywords.Get(keyworddomain.CategoryOpening), loc)
	rec.LeadsDate = leadDate
	rec.OpeningKeyword = openingKeyword
	rec.BookingDate = bookingStage(ordered, keywords.Get(keyworddomain.CategoryBooking), loc)
	rec.TransactionDate, rec.TransactionValue = transactionStage(ordered, keywords.Get(keyworddomain.CategoryTransaction), loc)

	phone, err := phoneOf(ordered)
	if err != nil {
		return Record{}, err
	}
	rec.Phone = phone

	return rec, nil
}

func leadStage(msgs []roomdomain.Message, opening keyworddomain.Set, loc *time.Location) (*time.Time, *string) {
	for _, m := range msgs {
		if kw, ok := opening.Match(m.Content); ok {
			return CalendarDate(m.CreatedAt, loc), &kw
		}
	}
	for _, m := range msgs {
		if m.SenderType == roomdomain.SenderCustomer {
			return CalendarDate(m.CreatedAt, loc), nil
		}
	}
	return nil, nil
}

func bookingStage(msgs []roomdomain.Message, booking keyworddomain.Set, loc *time.Location) *time.Time {
	for _, m := range msgs {
		if _, ok := booking.Match(m.Content); !ok {
			continue
		}
		if d, ok := InTextDate(m.Content); ok {
			return &d
		}
		return CalendarDate(m.CreatedAt, loc)
	}
	return nil
}

func transactionStage(msgs []roomdomain.Message, transaction keyworddomain.Set, loc *time.Location) (*time.Time, *float64) {
	for _, m := range msgs {
		if _, ok := transaction.Match(m.Content); !ok {
			continue
		}
		var value *float64
		if v, ok := ExtractAmount(m.Content); ok {
			value = &v
		}
		return CalendarDate(m.CreatedAt, loc), value
	}
	return nil, nil
}

// phoneOf prefers the phone column and only then decodes raw payloads.
func phoneOf(msgs []roomdomain.Message) (*string, error) {
	for _, m := range msgs {
		if m.Phone != nil && strings.TrimSpace(*m.Phone) != "" {
			p := strings.TrimSpace(*m.Phone)
			return &p, nil
		}
	}
	for _, m := range msgs {
		raw := strings.TrimSpace(string(m.RawPayload))
		if raw == "" || raw == "null" {
			continue
		}
		p, err := payload.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: message %d", ErrInvalidPayload, m.ID)
		}
		if phone, ok := payload.SenderPhone.Extract(p); ok {
			return &phone, nil
		}
	}
	return nil, nil
}

// CalendarDate returns the date of t in loc as midnight UTC.
func CalendarDate(t time.Time, loc *time.Location) *time.Time {
	lt := t.In(loc)
	d := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// InTextDate finds the first real YYYY-MM-DD (or YYYY/MM/DD) date in text.
func InTextDate(text string) (time.Time, bool) {
	for _, m := range inTextDate.FindAllStringSubmatch(text, -1) {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 {
			continue
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes overflow, e.g. Feb 30 into March.
		if d.Day() != day || int(d.Month()) != month {
			continue
		}
		return d, true
	}
	return time.Time{}, false
}

// MaxTransactionValue bounds extracted amounts. Larger tokens are account or
// phone numbers, and funnel.transaction_value is NUMERIC(20, 2).
const MaxTransactionValue = 1e15

// ExtractAmount takes the first number-like token and strips both '.' and ','
// before parsing. It does not try to tell thousand separators from decimals,
// so "1,50" is 150. A token at or above MaxTransactionValue is no amount.
func ExtractAmount(text string) (float64, bool) {
	token := amountToken.FindString(text)
	if token == "" {
		return 0, false
	}
	digits := strings.NewReplacer(".", "", ",", "").Replace(token)
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil || v >= MaxTransactionValue {
		return 0, false
	}
	return v, true
}
