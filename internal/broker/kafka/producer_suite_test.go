package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/TourSync/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TestNewProducer_NotNil() {
	p := NewProducer([]string{"localhost:0"})
	s.Require().NotNil(p)
}

func (s *ProducerSuite) TestNewProducerWithWriter_NotNil() {
	p := newProducerWithWriter(s.wm)
	s.Require().NotNil(p)
}

func (s *ProducerSuite) TestPublish_OK() {
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			return msgs[0].Topic == "tasks.snapshot" && string(msgs[0].Key) == "k" && string(msgs[0].Value) == "v"
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(context.Background(), "tasks.snapshot", []byte("k"), []byte("v")))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_SnapshotPage() {
	page := messages.SnapshotPage{
		RunID: "run-1",
		From:  time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		To:    time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		Page:  3,
		Tasks: []json.RawMessage{json.RawMessage(`{"taskId":"O1"}`)},
	}
	value, err := json.Marshal(page)
	s.Require().NoError(err)

	var got kafka.Message
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).([]kafka.Message)[0] }).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(context.Background(), "tasks.snapshot", page.Key(), value))
	s.Require().Equal("2026-10-17:3", string(got.Key))

	var decoded messages.SnapshotPage
	s.Require().NoError(json.Unmarshal(got.Value, &decoded))
	s.Require().Equal("run-1", decoded.RunID)
	s.Require().Equal(3, decoded.Page)
	s.Require().JSONEq(`{"taskId":"O1"}`, string(decoded.Tasks[0]))
}

func (s *ProducerSuite) TestPublish_ErrorWrapped() {
	want := errors.New("boom")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()

	err := s.p.Publish(context.Background(), "tasks.snapshot", []byte("k"), []byte("v"))
	s.Require().Error(err)
	s.Require().Contains(err.Error(), "kafka publish")
	s.wm.AssertExpectations(s.T())
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
