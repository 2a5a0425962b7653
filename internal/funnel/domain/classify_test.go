package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	roomdomain "github.com/smallbiznis/sparks/internal/room/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var day1 = time.Date(2025, 9, 20, 9, 0, 0, 0, time.UTC)

func snapshot(opening, booking, transaction []string) keyworddomain.Snapshot {
	return keyworddomain.Snapshot{
		keyworddomain.CategoryOpening:     keyworddomain.NewSet(opening),
		keyworddomain.CategoryBooking:     keyworddomain.NewSet(booking),
		keyworddomain.CategoryTransaction: keyworddomain.NewSet(transaction),
	}
}

func message(id int64, content string, at time.Time, sender roomdomain.SenderType) roomdomain.Message {
	return roomdomain.Message{
		ID:         snowflake.ID(id),
		RoomID:     1,
		SenderType: sender,
		Content:    content,
		RawPayload: datatypes.JSON(`{}`),
		CreatedAt:  at,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var testRoom = roomdomain.Room{ID: 1, RoomKey: "r-1", Channel: "whatsapp"}

func TestClassifyThreeMessageScenario(t *testing.T) {
	msgs := []roomdomain.Message{
		message(1, "halo kak", day1, roomdomain.SenderCustomer),
		message(2, "saya mau booking 2025-10-01", day1.Add(24*time.Hour), roomdomain.SenderCustomer),
		message(3, "sudah transfer 1.500.000", day1.Add(48*time.Hour), roomdomain.SenderCustomer),
	}
	kw := snapshot([]string{"halo"}, []string{"booking"}, []string{"transfer"})

	rec, err := Classify(testRoom, msgs, kw, time.UTC)
	require.NoError(t, err)

	require.NotNil(t, rec.OpeningKeyword)
	assert.Equal(t, "halo", *rec.OpeningKeyword)
	assert.Equal(t, date(2025, 9, 20), *rec.LeadsDate)
	assert.Equal(t, date(2025, 10, 1), *rec.BookingDate)
	assert.Equal(t, date(2025, 9, 22), *rec.TransactionDate)
	require.NotNil(t, rec.TransactionValue)
	assert.Equal(t, 1500000.0, *rec.TransactionValue)
	assert.Equal(t, "whatsapp", rec.Channel)
	assert.Equal(t, snowflake.ID(1), rec.RoomID)
}

func TestClassifyIsIdempotentAndOrderIndependent(t *testing.T) {
	msgs := []roomdomain.Message{
		message(3, "sudah bayar 250.000", day1.Add(2*time.Hour), roomdomain.SenderCustomer),
		message(1, "hai", day1, roomdomain.SenderCustomer),
		message(2, "booking dong", day1.Add(time.Hour), roomdomain.SenderAgent),
	}
	kw := snapshot([]string{"hai"}, []string{"booking"}, []string{"bayar"})

	first, err := Classify(testRoom, msgs, kw, time.UTC)
	require.NoError(t, err)
	reversed := []roomdomain.Message{msgs[2], msgs[1], msgs[0]}
	second, err := Classify(testRoom, reversed, kw, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The caller's slice is not reordered.
	assert.Equal(t, snowflake.ID(3), msgs[0].ID)
}

func TestClassifyBookingKeywordSensitivity(t *testing.T) {
	msgs := []roomdomain.Message{
		message(1, "halo", date(2025, 9, 1), roomdomain.SenderCustomer),
		message(2, "mau daftar", date(2025, 9, 2), roomdomain.SenderCustomer),
		message(3, "jadi booking ya", date(2025, 9, 3), roomdomain.SenderCustomer),
		message(4, "transfer 100", date(2025, 9, 4), roomdomain.SenderCustomer),
	}

	before, err := Classify(testRoom, msgs, snapshot([]string{"halo"}, []string{"booking"}, []string{"transfer"}), time.UTC)
	require.NoError(t, err)
	after, err := Classify(testRoom, msgs, snapshot([]string{"halo"}, []string{"daftar"}, []string{"transfer"}), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, date(2025, 9, 3), *before.BookingDate)
	assert.Equal(t, date(2025, 9, 2), *after.BookingDate)
	assert.Equal(t, before.LeadsDate, after.LeadsDate)
	assert.Equal(t, before.TransactionDate, after.TransactionDate)

	none, err := Classify(testRoom, msgs, snapshot([]string{"halo"}, nil, []string{"transfer"}), time.UTC)
	require.NoError(t, err)
	assert.Nil(t, none.BookingDate)
}

func TestClassifyInTextDateWinsOverMessageDate(t *testing.T) {
	msgs := []roomdomain.Message{
		message(1, "Booking untuk tanggal 2025-10-01 ya", date(2025, 9, 15), roomdomain.SenderCustomer),
	}
	rec, err := Classify(testRoom, msgs, snapshot(nil, []string{"booking"}, nil), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 10, 1), *rec.BookingDate)

	msgs[0].Content = "booking tanggal 2025-02-30"
	rec, err = Classify(testRoom, msgs, snapshot(nil, []string{"booking"}, nil), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 9, 15), *rec.BookingDate)
}

func TestClassifyLeadFallsBackToFirstCustomerMessage(t *testing.T) {
	msgs := []roomdomain.Message{
		message(1, "Selamat datang", date(2025, 9, 1), roomdomain.SenderAgent),
		message(2, "info harga?", date(2025, 9, 2), roomdomain.SenderCustomer),
	}
	rec, err := Classify(testRoom, msgs, snapshot([]string{"halo"}, nil, nil), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 9, 2), *rec.LeadsDate)
	assert.Nil(t, rec.OpeningKeyword)

	rec, err = Classify(testRoom, msgs[:1], snapshot([]string{"halo"}, nil, nil), time.UTC)
	require.NoError(t, err)
	assert.Nil(t, rec.LeadsDate)
}

func TestClassifyStagesAreIndependentOfOrder(t *testing.T) {
	msgs := []roomdomain.Message{
		message(1, "transfer 50.000", date(2025, 9, 1), roomdomain.SenderCustomer),
		message(2, "booking", date(2025, 9, 5), roomdomain.SenderCustomer),
	}
	rec, err := Classify(testRoom, msgs, snapshot(nil, []string{"booking"}, []string{"transfer"}), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 9, 1), *rec.TransactionDate)
	assert.Equal(t, date(2025, 9, 5), *rec.BookingDate)
}

func TestClassifyTransactionWithoutAmount(t *testing.T) {
	msgs := []roomdomain.Message{message(1, "sudah transfer ya kak", day1, roomdomain.SenderCustomer)}
	rec, err := Classify(testRoom, msgs, snapshot(nil, nil, []string{"transfer"}), time.UTC)
	require.NoError(t, err)
	require.NotNil(t, rec.TransactionDate)
	assert.Nil(t, rec.TransactionValue)

	msgs = []roomdomain.Message{message(1, "transfer ke rek 12345678901234567", day1, roomdomain.SenderCustomer)}
	rec, err = Classify(testRoom, msgs, snapshot(nil, nil, []string{"transfer"}), time.UTC)
	require.NoError(t, err)
	require.NotNil(t, rec.TransactionDate)
	assert.Nil(t, rec.TransactionValue)
}

func TestClassifyPhone(t *testing.T) {
	phone := " +62811 "
	withColumn := message(2, "b", day1.Add(time.Hour), roomdomain.SenderCustomer)
	withColumn.Phone = &phone
	withRaw := message(1, "a", day1, roomdomain.SenderCustomer)
	withRaw.RawPayload = datatypes.JSON(`{"sender":{"mobile":"+62822"}}`)

	rec, err := Classify(testRoom, []roomdomain.Message{withRaw, withColumn}, snapshot(nil, nil, nil), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "+62811", *rec.Phone)

	rec, err = Classify(testRoom, []roomdomain.Message{withRaw}, snapshot(nil, nil, nil), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "+62822", *rec.Phone)
}

func TestClassifyUndecodableRawPayloadFailsRoom(t *testing.T) {
	bad := message(1, "halo", day1, roomdomain.SenderCustomer)
	bad.RawPayload = datatypes.JSON(`[1,2]`)

	_, err := Classify(testRoom, []roomdomain.Message{bad}, snapshot(nil, nil, nil), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Classify(testRoom, nil, snapshot(nil, nil, nil), time.UTC)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestClassifyUsesTimezoneForCalendarDates(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	late := time.Date(2025, 9, 30, 20, 0, 0, 0, time.UTC) // 03:00 on Oct 1 in WIB
	msgs := []roomdomain.Message{message(1, "halo", late, roomdomain.SenderCustomer)}

	rec, err := Classify(testRoom, msgs, snapshot([]string{"halo"}, nil, nil), jakarta)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 10, 1), *rec.LeadsDate)
}

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"sudah transfer 1.500.000", 1500000, true},
		{"bayar 250,000 ya", 250000, true},
		{"total 1,50", 150, true},
		{"transfer 75000 dan 20000", 75000, true},
		{"sudah lunas", 0, false},
		{"transfer ke rek 12345678901234567", 0, false},
		{"transfer 999.999.999.999.999", 999999999999999, true},
	}
	for _, tc := range cases {
		got, ok := ExtractAmount(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
	}
}

func TestInTextDate(t *testing.T) {
	d, ok := InTextDate("tgl 2025/1/5 jam 10")
	require.True(t, ok)
	assert.Equal(t, date(2025, 1, 5), d)

	_, ok = InTextDate("besok saja")
	assert.False(t, ok)

	d, ok = InTextDate("2025-13-01 atau 2025-12-24")
	require.True(t, ok)
	assert.Equal(t, date(2025, 12, 24), d)
}
