package bridge

// FindRoomRequest is the bot's room search.
type FindRoomRequest struct {
	LocationID      string    `json:"location_id"`
	StartAt         string    `json:"start_at"`
	Date            string    `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	RequestedBy     Requester `json:"requested_by"`
	Floor           *int      `json:"floor,omitempty"`
	Filters         *Filters  `json:"filters,omitempty"`
}

// Requester identifies the chat user behind a request.
type Requester struct {
	TelegramUserID int64 `json:"telegram_user_id"`
}

// Filters are optional search constraints. They are accepted and logged but
// the solver protocol has no field for them.
type Filters struct {
	MinCapacity   *int  `json:"min_capacity,omitempty"`
	NeedProjector *bool `json:"need_projector,omitempty"`
}

// RoomInfo describes one room offered to the bot.
type RoomInfo struct {
	Name           string `json:"name"`
	LocationName   string `json:"location_name"`
	LocationID     string `json:"location_id"`
	Floor          int    `json:"floor"`
	Capacity       *int   `json:"capacity"`
	ScheduleFree   bool   `json:"schedule_free"`
	CameraFree     bool   `json:"camera_free"`
	CameraStatus   string `json:"camera_status"`
	AuditoryID     *int64 `json:"auditory_id"`
	AvailableFrom  string `json:"available_from"`
	AvailableUntil string `json:"available_until"`
}

// FindRoomResponse is the answer to a room search. Both lists are always
// present; Reason is null when a room was found.
type FindRoomResponse struct {
	FreeRooms    []RoomInfo `json:"free_rooms"`
	Alternatives []RoomInfo `json:"alternatives"`
	Reason       *string    `json:"reason"`
}

// CancelRequest asks to release a booked room. Times are "HH:mm".
type CancelRequest struct {
	TelegramUserID int64  `json:"telegram_user_id"`
	AuditoryName   string `json:"auditory_name"`
	Corpus         string `json:"corpus"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
}

// Cancellation statuses.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deleted_count"`
}
