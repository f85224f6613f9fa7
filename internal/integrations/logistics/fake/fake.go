package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/BearBump/TourSync/internal/integrations/logistics"
)

var statuses = []string{"SCHEDULED", "ASSIGNED", "STARTED", "ONGOING", "ARRIVED", "COMPLETED", "COMPLETED", "FAILED"}

// FakeClient — детерминированный источник задач для локального запуска без внешней платформы.
// Для одного и того же окна и страницы всегда возвращает одни и те же задачи.
type FakeClient struct {
	tasksPerDay   int
	ordersPerTour int
}

func New() *FakeClient { return &FakeClient{tasksPerDay: 120, ordersPerTour: 12} }

func (f *FakeClient) FetchTasks(ctx context.Context, q logistics.Query) (logistics.Page, error) {
	if err := ctx.Err(); err != nil {
		return logistics.Page{}, err
	}
	size := q.PageSize
	if size <= 0 {
		size = 50
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	day := q.From.UTC().Format("20060102")

	start := (page - 1) * size
	end := start + size
	if end > f.tasksPerDay {
		end = f.tasksPerDay
	}

	var out logistics.Page
	for i := start; i < end; i++ {
		b, err := json.Marshal(f.task(day, i, q.From))
		if err != nil {
			return logistics.Page{}, err
		}
		out.Tasks = append(out.Tasks, b)
	}
	out.HasMore = end < f.tasksPerDay
	return out, nil
}

func (f *FakeClient) task(day string, i int, from time.Time) map[string]any {
	id := fmt.Sprintf("%s-%04d", day, i)
	tour := i / f.ordersPerTour

	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	v := h.Sum32()
	status := statuses[int(v)%len(statuses)]

	t := map[string]any{
		"taskId":     "T" + id,
		"status":     status,
		"taskSource": "FAKE",
		"createdOn":  from.UTC().Format(time.RFC3339),
		"tourDetail": map[string]any{
			"tourId": fmt.Sprintf("TOUR-%s-%02d", day, tour),
			"date":   from.UTC().Format(time.RFC3339),
		},
		"fleetInfo": map[string]any{
			"rider":   map[string]any{"id": fmt.Sprintf("R-%02d", tour), "name": fmt.Sprintf("Rider %02d", tour)},
			"vehicle": map[string]any{"id": fmt.Sprintf("V-%02d", tour), "model": "Van"},
		},
		"customerVisit": map[string]any{
			"location": map[string]any{
				"name":    fmt.Sprintf("Customer %d", i),
				"address": map[string]any{"city": "Springfield"},
				"latLng":  map[string]any{"lat": 50 + float64(v%1000)/1000, "lng": 30 + float64(v%777)/1000},
			},
			"orderDetail": map[string]any{"lineItems": []any{
				map[string]any{"id": "SKU-" + fmt.Sprint(v%10), "name": "Item", "quantity": 1 + v%5, "unit": "pcs"},
			}},
		},
	}
	// каждая 7-я задача отменена чек-листом
	if v%7 == 0 {
		t["customerVisit"].(map[string]any)["checklists"] = map[string]any{
			"cancelled": map[string]any{
				"status":    "CANCELLED",
				"updatedOn": from.UTC().Add(2 * time.Hour).Format(time.RFC3339),
				"items": []any{
					map[string]any{"id": "Cancellation-reason", "selectedValue": "Customer unavailable"},
				},
			},
		}
	}
	return t
}
