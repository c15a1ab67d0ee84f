package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 9, 3, hour, minute, 0, 0, time.UTC)
}

func TestClassify(t *testing.T) {
	nine := Clock{Hour: 9}

	tests := []struct {
		name    string
		late    int
		absent  int
		when    time.Time
		want    Code
		wantErr error
	}{
		{name: "window opens an hour before", late: 10, absent: 30, when: at(8, 0), want: OnTime},
		{name: "one minute before the window", late: 10, absent: 30, when: at(7, 59), wantErr: ErrTooEarly},
		{name: "well before the window", late: 10, absent: 30, when: at(6, 30), wantErr: ErrTooEarly},
		{name: "just after start", late: 10, absent: 30, when: at(9, 5), want: OnTime},
		{name: "late threshold is inclusive", late: 10, absent: 30, when: at(9, 10), want: OnTime},
		{name: "late", late: 10, absent: 30, when: at(9, 20), want: Late},
		{name: "absent threshold is inclusive", late: 10, absent: 30, when: at(9, 30), want: Late},
		{name: "absent", late: 10, absent: 30, when: at(9, 35), want: Absent},
		{name: "zero thresholds", late: 0, absent: 0, when: at(9, 1), want: Absent},
		{name: "negative late", late: -1, absent: 30, when: at(9, 0), wantErr: ErrInvalidConfiguration},
		{name: "absent before late", late: 20, absent: 10, when: at(9, 0), wantErr: ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(nine, tt.late, tt.absent, tt.when)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyMonotonic(t *testing.T) {
	severity := map[Code]int{OnTime: 0, Late: 1, Absent: 2}
	starts := []Clock{{Hour: 0, Minute: 30}, {Hour: 9}, {Hour: 13, Minute: 45}, {Hour: 23, Minute: 15}}
	thresholds := [][2]int{{0, 0}, {0, 15}, {10, 30}, {45, 45}, {90, 240}}

	for _, start := range starts {
		for _, th := range thresholds {
			prev := -1
			for m := 0; m < 24*60; m++ {
				code, err := Classify(start, th[0], th[1], at(m/60, m%60))
				if err != nil {
					assert.ErrorIs(t, err, ErrTooEarly)
					assert.Equal(t, -1, prev, "too early after a classified minute: start=%s m=%d", start, m)
					continue
				}
				s := severity[code]
				assert.GreaterOrEqual(t, s, prev, "start=%s thresholds=%v minute=%d", start, th, m)
				prev = s
			}
		}
	}
}

func TestSessionClassifyUsesLocation(t *testing.T) {
	ny := time.FixedZone("EDT", -4*60*60)
	s := Session{Start: Clock{Hour: 9}, LateMinutes: 10, AbsentMinutes: 30, Location: ny}
	// 13:05 UTC is 09:05 EDT
	code, err := s.Classify(time.Date(2024, 9, 3, 13, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, OnTime, code)

	assert.Equal(t, "2024-09-02", s.Today(time.Date(2024, 9, 3, 2, 0, 0, 0, time.UTC)))
}

func TestLastClosedDate(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	s := Session{Start: Clock{Hour: 10}, LateMinutes: 10, AbsentMinutes: 30, Location: jst}

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"before today's start", time.Date(2024, 9, 4, 0, 0, 0, 0, time.UTC), "2024-09-03"},
		{"still in the late window", time.Date(2024, 9, 4, 1, 30, 0, 0, time.UTC), "2024-09-03"},
		{"window just closed", time.Date(2024, 9, 4, 1, 31, 0, 0, time.UTC), "2024-09-04"},
		{"evening", time.Date(2024, 9, 4, 11, 0, 0, 0, time.UTC), "2024-09-04"},
		{"after local midnight", time.Date(2024, 9, 4, 15, 30, 0, 0, time.UTC), "2024-09-04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.LastClosedDate(tt.now))
		})
	}

	// a window that runs past midnight belongs to the day it started
	overnight := Session{Start: Clock{Hour: 23, Minute: 30}, AbsentMinutes: 60}
	assert.Equal(t, "2024-09-01", overnight.LastClosedDate(time.Date(2024, 9, 3, 0, 15, 0, 0, time.UTC)))
	assert.Equal(t, "2024-09-03", overnight.LastClosedDate(time.Date(2024, 9, 4, 0, 31, 0, 0, time.UTC)))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 5}, c)
	assert.Equal(t, "09:05", c.String())

	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "-1:00"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidClock, bad)
	}
}

func session(dates ...string) Session {
	return Session{Start: Clock{Hour: 9}, LateMinutes: 10, AbsentMinutes: 30, Dates: dates}
}

func TestRecordCheckin(t *testing.T) {
	s := session("2024-09-02", "2024-09-03", "2024-09-04")

	t.Run("pads short records", func(t *testing.T) {
		rec := Record{Student: "ada", Codes: []Code{OnTime}}
		got, err := RecordCheckin(s, rec, "2024-09-03", Late)
		require.NoError(t, err)
		assert.Equal(t, []Code{OnTime, Late, Empty}, got.Codes)
		assert.Equal(t, []Code{OnTime}, rec.Codes, "input must not be mutated")
	})

	t.Run("idempotent", func(t *testing.T) {
		rec := Record{Student: "ada", Codes: []Code{Empty, Empty, Empty}}
		once, err := RecordCheckin(s, rec, "2024-09-04", OnTime)
		require.NoError(t, err)
		twice, err := RecordCheckin(s, once, "2024-09-04", OnTime)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})

	t.Run("last write wins", func(t *testing.T) {
		rec := Record{Student: "ada", Codes: []Code{Empty, Absent, Empty}}
		got, err := RecordCheckin(s, rec, "2024-09-03", OnTime)
		require.NoError(t, err)
		assert.Equal(t, OnTime, got.Codes[1])
	})

	t.Run("unknown date", func(t *testing.T) {
		rec := Record{Student: "ada", Codes: []Code{Empty}}
		got, err := RecordCheckin(s, rec, "2024-10-01", OnTime)
		assert.ErrorIs(t, err, ErrDateNotFound)
		assert.Equal(t, rec, got)
	})
}

func TestSweepAbsences(t *testing.T) {
	s := session("2024-09-02", "2024-09-03")
	records := []Record{
		{Student: "ada", Codes: []Code{OnTime, Late}},
		{Student: "bob", Codes: []Code{OnTime}},
		{Student: "cy", Codes: nil},
	}

	once := SweepAbsences(s, records, "2024-09-03")
	assert.Equal(t, []Code{OnTime, Late}, once[0].Codes)
	assert.Equal(t, []Code{OnTime, Absent}, once[1].Codes)
	assert.Equal(t, []Code{Empty, Absent}, once[2].Codes)

	twice := SweepAbsences(s, once, "2024-09-03")
	assert.Equal(t, once, twice)

	for _, rec := range once {
		assert.False(t, Changed(s, rec, "2024-09-03"))
	}
	assert.True(t, Changed(s, records[2], "2024-09-03"))

	untouched := SweepAbsences(s, records, "2024-09-10")
	assert.Equal(t, []Code{OnTime, Empty}, untouched[1].Codes)
	assert.False(t, Changed(s, records[1], "2024-09-10"))
}
