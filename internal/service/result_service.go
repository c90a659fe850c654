package service

import (
	"fmt"
	"sort"

	"github.com/yourusername/classquiz-api/internal/domain/entity"
	"github.com/yourusername/classquiz-api/internal/domain/repository"
)

// ResultService собирает итоги сессии: таблицу лидеров, командный зачет и
// данные для отчета учителя. Только чтение; очки пишутся исключительно
// транзакцией приема ответа.
type ResultService struct {
	sessionRepo     repository.SessionRepository
	participantRepo repository.ParticipantRepository
	answerRepo      repository.AnswerRepository
	scoreRepo       repository.ScoreRepository
	questionRepo    repository.QuestionRepository
}

// NewResultService создает новый сервис результатов
func NewResultService(
	sessionRepo repository.SessionRepository,
	participantRepo repository.ParticipantRepository,
	answerRepo repository.AnswerRepository,
	scoreRepo repository.ScoreRepository,
	questionRepo repository.QuestionRepository,
) *ResultService {
	return &ResultService{
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		answerRepo:      answerRepo,
		scoreRepo:       scoreRepo,
		questionRepo:    questionRepo,
	}
}

// LeaderboardEntry - строка таблицы лидеров
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID uint   `json:"participant_id"`
	Nickname      string `json:"nickname"`
	Team          string `json:"team,omitempty"`
	TotalPoints   int    `json:"total_points"`
	CorrectCount  int    `json:"correct_count"`
	MaxStreak     int    `json:"max_streak"`
	IsEliminated  bool   `json:"is_eliminated"`
}

// TeamStanding - строка командного зачета
type TeamStanding struct {
	Rank        int    `json:"rank"`
	Team        string `json:"team"`
	TotalPoints int    `json:"total_points"`
	Members     int    `json:"members"`
}

// SessionResults - полные итоги сессии
type SessionResults struct {
	SessionID   uint               `json:"session_id"`
	GameMode    string             `json:"game_mode"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Teams       []TeamStanding     `json:"teams,omitempty"`
}

// GetSessionResults возвращает таблицу лидеров сессии; для командного режима
// дополнительно считается командный зачет (сумма очков участников)
func (s *ResultService) GetSessionResults(sessionID uint) (*SessionResults, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	participants, err := s.participantRepo.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	scores, err := s.scoreRepo.GetBySession(sessionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answerRepo.GetBySession(sessionID)
	if err != nil {
		return nil, err
	}

	totals := make(map[uint]int, len(scores))
	for _, score := range scores {
		totals[score.ParticipantID] = score.TotalPoints
	}
	correct := make(map[uint]int, len(participants))
	for _, answer := range answers {
		if answer.IsCorrect {
			correct[answer.ParticipantID]++
		}
	}

	leaderboard := make([]LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		leaderboard = append(leaderboard, LeaderboardEntry{
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			Team:          p.Team,
			TotalPoints:   totals[p.ID],
			CorrectCount:  correct[p.ID],
			MaxStreak:     p.MaxStreak,
			IsEliminated:  p.IsEliminated,
		})
	}
	sort.SliceStable(leaderboard, func(i, j int) bool {
		return leaderboard[i].TotalPoints > leaderboard[j].TotalPoints
	})
	for i := range leaderboard {
		leaderboard[i].Rank = i + 1
	}

	results := &SessionResults{
		SessionID:   sessionID,
		GameMode:    session.GameMode,
		Leaderboard: leaderboard,
	}
	if session.GameMode == entity.GameModeTeams {
		results.Teams = buildTeamStandings(leaderboard)
	}
	return results, nil
}

// buildTeamStandings агрегирует очки по командам
func buildTeamStandings(leaderboard []LeaderboardEntry) []TeamStanding {
	byTeam := make(map[string]*TeamStanding)
	for _, entry := range leaderboard {
		if entry.Team == "" {
			continue
		}
		standing, ok := byTeam[entry.Team]
		if !ok {
			standing = &TeamStanding{Team: entry.Team}
			byTeam[entry.Team] = standing
		}
		standing.TotalPoints += entry.TotalPoints
		standing.Members++
	}

	standings := make([]TeamStanding, 0, len(byTeam))
	for _, standing := range byTeam {
		standings = append(standings, *standing)
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].TotalPoints > standings[j].TotalPoints
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

// ParticipantReport - детальный разбор одного участника для отчета
type ParticipantReport struct {
	ParticipantID uint              `json:"participant_id"`
	Nickname      string            `json:"nickname"`
	Team          string            `json:"team,omitempty"`
	TotalPoints   int               `json:"total_points"`
	MaxStreak     int               `json:"max_streak"`
	Answers       []ReportAnswerRow `json:"answers"`
}

// ReportAnswerRow - один ответ в отчете
type ReportAnswerRow struct {
	QuestionID     uint   `json:"question_id"`
	QuestionText   string `json:"question_text"`
	AnswerText     string `json:"answer_text"`
	IsCorrect      bool   `json:"is_correct"`
	PointsAwarded  int    `json:"points_awarded"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// GetParticipantReport возвращает детальный разбор ответов участника
func (s *ResultService) GetParticipantReport(sessionID, participantID uint) (*ParticipantReport, error) {
	participant, err := s.participantRepo.GetByID(participantID)
	if err != nil {
		return nil, err
	}
	if participant.SessionID != sessionID {
		return nil, fmt.Errorf("participant %d does not belong to session %d", participantID, sessionID)
	}

	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.GetByQuizIDOrdered(session.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answerRepo.GetByParticipant(sessionID, participantID)
	if err != nil {
		return nil, err
	}

	questionText := make(map[uint]string, len(questions))
	for _, q := range questions {
		questionText[q.ID] = q.Text
	}
	byQuestion := make(map[uint]entity.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	report := &ParticipantReport{
		ParticipantID: participant.ID,
		Nickname:      participant.Nickname,
		Team:          participant.Team,
		MaxStreak:     participant.MaxStreak,
	}
	// Ответы идут в порядке вопросов викторины; пропущенные вопросы
	// попадают в отчет пустыми строками
	for _, q := range questions {
		row := ReportAnswerRow{
			QuestionID:   q.ID,
			QuestionText: q.Text,
		}
		if a, ok := byQuestion[q.ID]; ok {
			row.AnswerText = a.AnswerText
			row.IsCorrect = a.IsCorrect
			row.PointsAwarded = a.PointsAwarded
			row.ResponseTimeMs = a.ResponseTimeMs
			report.TotalPoints += a.PointsAwarded
		}
		report.Answers = append(report.Answers, row)
	}
	return report, nil
}

// SessionReport - табличные данные отчета по всей сессии (основа экспорта)
type SessionReport struct {
	SessionID uint
	Pin       string
	GameMode  string
	Questions []entity.Question
	Rows      []ParticipantReport
}

// GetSessionReport собирает отчет по всем участникам сессии
func (s *ResultService) GetSessionReport(sessionID uint) (*SessionReport, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.GetByQuizIDOrdered(session.QuizID)
	if err != nil {
		return nil, err
	}
	participants, err := s.participantRepo.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answerRepo.GetBySession(sessionID)
	if err != nil {
		return nil, err
	}

	// Группируем ответы по участникам одним проходом
	byParticipant := make(map[uint]map[uint]entity.Answer, len(participants))
	for _, a := range answers {
		if byParticipant[a.ParticipantID] == nil {
			byParticipant[a.ParticipantID] = make(map[uint]entity.Answer)
		}
		byParticipant[a.ParticipantID][a.QuestionID] = a
	}

	report := &SessionReport{
		SessionID: sessionID,
		Pin:       session.Pin,
		GameMode:  session.GameMode,
		Questions: questions,
	}
	for _, p := range participants {
		row := ParticipantReport{
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			Team:          p.Team,
			MaxStreak:     p.MaxStreak,
		}
		for _, q := range questions {
			answerRow := ReportAnswerRow{QuestionID: q.ID, QuestionText: q.Text}
			if a, ok := byParticipant[p.ID][q.ID]; ok {
				answerRow.AnswerText = a.AnswerText
				answerRow.IsCorrect = a.IsCorrect
				answerRow.PointsAwarded = a.PointsAwarded
				answerRow.ResponseTimeMs = a.ResponseTimeMs
				row.TotalPoints += a.PointsAwarded
			}
			row.Answers = append(row.Answers, answerRow)
		}
		report.Rows = append(report.Rows, row)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		return report.Rows[i].TotalPoints > report.Rows[j].TotalPoints
	})
	return report, nil
}
