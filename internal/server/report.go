package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	funneldomain "github.com/smallbiznis/sparks/internal/funnel/domain"
)

type funnelRecordView struct {
	RoomID           string    `json:"room_id"`
	Channel          string    `json:"channel"`
	Phone            *string   `json:"phone"`
	LeadsDate        *string   `json:"leads_date"`
	OpeningKeyword   *string   `json:"opening_keyword"`
	BookingDate      *string   `json:"booking_date"`
	TransactionDate  *string   `json:"transaction_date"`
	TransactionValue *float64  `json:"transaction_value"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type funnelReportResponse struct {
	Count         int                `json:"count"`
	Data          []funnelRecordView `json:"data"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

type funnelSummaryResponse struct {
	Data []funneldomain.ChannelSummary `json:"data"`
}

func (s *Server) FunnelReport(c *gin.Context) {
	filter, err := parseReportFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	page, err := s.funnelSvc.Report(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := make([]funnelRecordView, 0, len(page.Records))
	for _, rec := range page.Records {
		data = append(data, toFunnelRecordView(rec))
	}
	c.JSON(http.StatusOK, funnelReportResponse{
		Count:         len(data),
		Data:          data,
		NextPageToken: page.NextPageToken,
	})
}

func (s *Server) FunnelSummary(c *gin.Context) {
	filter, err := parseReportFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows, err := s.funnelSvc.Summary(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if rows == nil {
		rows = []funneldomain.ChannelSummary{}
	}
	c.JSON(http.StatusOK, funnelSummaryResponse{Data: rows})
}

func parseReportFilter(c *gin.Context) (funneldomain.ReportFilter, error) {
	start, err := parseOptionalDate(c.Query("start_date"))
	if err != nil {
		return funneldomain.ReportFilter{}, err
	}
	end, err := parseOptionalDate(c.Query("end_date"))
	if err != nil {
		return funneldomain.ReportFilter{}, err
	}
	size, err := parseOptionalInt(c.Query("page_size"))
	if err != nil {
		return funneldomain.ReportFilter{}, err
	}
	return funneldomain.ReportFilter{
		StartDate: start,
		EndDate:   end,
		Channel:   strings.TrimSpace(c.Query("channel")),
		PageSize:  size,
		PageToken: strings.TrimSpace(c.Query("page_token")),
	}, nil
}

func toFunnelRecordView(rec funneldomain.Record) funnelRecordView {
	return funnelRecordView{
		RoomID:           rec.RoomKey,
		Channel:          rec.Channel,
		Phone:            rec.Phone,
		LeadsDate:        formatDate(rec.LeadsDate),
		OpeningKeyword:   rec.OpeningKeyword,
		BookingDate:      formatDate(rec.BookingDate),
		TransactionDate:  formatDate(rec.TransactionDate),
		TransactionValue: rec.TransactionValue,
		UpdatedAt:        rec.UpdatedAt,
	}
}
