// Команда seed наполняет базу демонстрационными данными: аккаунты всех ролей,
// класс с расписанием и оценками, новости, достижения, проект и чат.
// Повторный запуск безопасен: существующие аккаунты пропускаются.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ValeZask/EduDiaryGit/internal/auth"
	"github.com/ValeZask/EduDiaryGit/internal/chat"
	"github.com/ValeZask/EduDiaryGit/internal/config"
	"github.com/ValeZask/EduDiaryGit/internal/logger"
	"github.com/ValeZask/EduDiaryGit/internal/model"
	"github.com/ValeZask/EduDiaryGit/internal/repository"
	"github.com/ValeZask/EduDiaryGit/internal/startup"
	"github.com/ValeZask/EduDiaryGit/migrations"
)

const demoPassword = "demo12345"

// noopNotifier нужен сервису переписки: при сидировании никто не подключён.
type noopNotifier struct{}

func (noopNotifier) ChatCreated(*model.Chat, []string)                     {}
func (noopNotifier) MessageSent(*model.Chat, *model.ChatMessage, []string) {}
func (noopNotifier) MessagesRead(string, string)                           {}
func (noopNotifier) MembersAdded(string, []model.ChatParticipant)          {}

func main() {
	logger.SetPrefix("seed")
	cfg := config.Load()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	pool := startup.ConnectDBWithRetry(poolCfg, 30*time.Second)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := migrations.Apply(ctx, pool); err != nil {
		logger.Errorf("migrations: %v", err)
		os.Exit(1)
	}

	if err := seed(ctx, pool); err != nil {
		logger.Errorf("seed: %v", err)
		os.Exit(1)
	}
	logger.Infof("demo data ready, password for all accounts: %s", demoPassword)
	logger.Flush()
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	userRepo := repository.NewUserRepository(pool)
	schoolRepo := repository.NewSchoolRepository(pool)
	newsRepo := repository.NewNewsRepository(pool)
	achRepo := repository.NewAchievementRepository(pool)
	projRepo := repository.NewProjectRepository(pool)

	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ensureUser := func(email, fullName string, role model.Role) (*model.User, bool, error) {
		if u, err := userRepo.GetByEmail(ctx, email); err == nil {
			return u, false, nil
		}
		u := &model.User{
			ID:           uuid.New().String(),
			Email:        email,
			PasswordHash: hash,
			FullName:     fullName,
			Role:         role,
		}
		if err := userRepo.Create(ctx, u); err != nil {
			return nil, false, err
		}
		logger.Infof("created %s account %s", role, email)
		return u, true, nil
	}

	teacher, fresh, err := ensureUser("teacher@edudiary.local", "Айгерим Сапарова", model.RoleTeacher)
	if err != nil {
		return err
	}
	if !fresh {
		logger.Info("demo accounts already exist, nothing to do")
		return nil
	}
	student1, _, err := ensureUser("aruzhan@edudiary.local", "Аружан Касымова", model.RoleStudent)
	if err != nil {
		return err
	}
	student2, _, err := ensureUser("dias@edudiary.local", "Диас Нурланов", model.RoleStudent)
	if err != nil {
		return err
	}
	parent, _, err := ensureUser("parent@edudiary.local", "Гульнара Касымова", model.RoleParent)
	if err != nil {
		return err
	}
	if err := userRepo.LinkParent(ctx, parent.ID, student1.ID); err != nil {
		return err
	}

	class := &model.Class{
		ID:           uuid.New().String(),
		Number:       7,
		Letter:       "Б",
		TeacherID:    teacher.ID,
		AcademicYear: "2025/2026",
	}
	if err := schoolRepo.CreateClass(ctx, class); err != nil {
		return err
	}
	for _, s := range []*model.User{student1, student2} {
		p := &model.Profile{UserID: s.ID, ClassNumber: class.Number, ClassLetter: class.Letter}
		if err := userRepo.UpsertProfile(ctx, p); err != nil {
			return err
		}
	}

	subjectNames := []string{"Математика", "Физика", "История", "Информатика"}
	subjects := make([]*model.Subject, 0, len(subjectNames))
	for _, name := range subjectNames {
		s := &model.Subject{ID: uuid.New().String(), Name: name, TeacherID: teacher.ID}
		if err := schoolRepo.CreateSubject(ctx, s); err != nil {
			return err
		}
		subjects = append(subjects, s)
	}

	lessons := []struct {
		day   int
		start string
		end   string
		room  string
	}{
		{1, "08:30", "09:15", "204"},
		{1, "09:25", "10:10", "305"},
		{3, "08:30", "09:15", "204"},
		{5, "10:20", "11:05", "110"},
	}
	for i, l := range lessons {
		sch := &model.Schedule{
			ID:        uuid.New().String(),
			ClassID:   class.ID,
			SubjectID: subjects[i%len(subjects)].ID,
			DayOfWeek: l.day,
			StartTime: l.start,
			EndTime:   l.end,
			Room:      l.room,
		}
		if err := schoolRepo.CreateSchedule(ctx, sch); err != nil {
			return err
		}
	}

	today := time.Now().Truncate(24 * time.Hour)
	gradeValues := []int{5, 4, 5, 3, 4, 5}
	for i, v := range gradeValues {
		g := &model.Grade{
			ID:        uuid.New().String(),
			StudentID: student1.ID,
			SubjectID: subjects[i%len(subjects)].ID,
			Value:     v,
			Date:      today.AddDate(0, 0, -i*2),
		}
		if i == 0 {
			g.Comment = "Отличная контрольная"
		}
		if err := schoolRepo.CreateGrade(ctx, g); err != nil {
			return err
		}
		g2 := &model.Grade{
			ID:        uuid.New().String(),
			StudentID: student2.ID,
			SubjectID: subjects[i%len(subjects)].ID,
			Value:     gradeValues[(i+2)%len(gradeValues)],
			Date:      today.AddDate(0, 0, -i*2),
		}
		if err := schoolRepo.CreateGrade(ctx, g2); err != nil {
			return err
		}
	}

	newsCat, err := newsRepo.GetOrCreateCategory(ctx, "События школы")
	if err != nil {
		return err
	}
	news := &model.News{
		ID:         uuid.New().String(),
		Title:      "Осенняя олимпиада по математике",
		Content:    "Регистрация открыта до конца недели. Участвуют 5-9 классы.",
		AuthorID:   teacher.ID,
		CategoryID: &newsCat.ID,
	}
	if err := newsRepo.Create(ctx, news); err != nil {
		return err
	}

	achCat, err := achRepo.GetOrCreateCategory(ctx, "Олимпиада")
	if err != nil {
		return err
	}
	achPlace, err := achRepo.GetOrCreatePlace(ctx, "1 место")
	if err != nil {
		return err
	}
	ach := &model.Achievement{
		ID:         uuid.New().String(),
		StudentID:  student1.ID,
		Title:      "Городская олимпиада по математике",
		Date:       today.AddDate(0, -1, 0),
		CategoryID: achCat.ID,
		PlaceID:    achPlace.ID,
	}
	if err := achRepo.Create(ctx, ach); err != nil {
		return err
	}

	code, err := projRepo.NextProjectCode(ctx)
	if err != nil {
		return err
	}
	project := &model.Project{
		ID:          uuid.New().String(),
		ProjectCode: code,
		Title:       "Школьная метеостанция",
		Description: "Сборка датчиков и публикация показаний на сайте школы.",
		StartDate:   today,
		Status:      model.ProjectStatusActive,
		Priority:    model.ProjectPriorityHigh,
	}
	if err := projRepo.Create(ctx, project); err != nil {
		return err
	}
	for i, s := range []*model.User{student1, student2} {
		role := model.ProjectMemberMember
		if i == 0 {
			role = model.ProjectMemberLead
		}
		m := &model.ProjectMember{ProjectID: project.ID, StudentID: s.ID, Role: role}
		if err := projRepo.AddMember(ctx, m); err != nil {
			return err
		}
	}
	task := &model.ProjectTask{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Title:     "Подключить датчик температуры",
		Status:    model.TaskStatusInProgress,
	}
	task.AssignedTo = &student2.ID
	if err := projRepo.CreateTask(ctx, task); err != nil {
		return err
	}

	event := &model.Event{
		ID:          uuid.New().String(),
		Title:       "Родительское собрание 7Б",
		Description: "Итоги четверти и планы на каникулы.",
		Date:        today.AddDate(0, 0, 7),
		Time:        "18:00",
		Location:    "Кабинет 204",
		OrganizerID: &teacher.ID,
	}
	if err := projRepo.CreateEvent(ctx, event); err != nil {
		return err
	}

	svc := chat.NewService(repository.NewChatStore(pool), noopNotifier{})
	ch, err := svc.CreateChat(ctx, teacher.ID, []string{student1.ID, student2.ID, parent.ID}, "7Б — объявления")
	if err != nil {
		return err
	}
	messages := []struct {
		sender  string
		content string
	}{
		{teacher.ID, "Добрый день! Завтра контрольная по математике."},
		{student1.ID, "Какие темы повторить?"},
		{teacher.ID, "Дроби и уравнения, параграфы 12-14."},
	}
	for _, m := range messages {
		if _, err := svc.SendMessage(ctx, ch.ID, m.sender, m.content); err != nil {
			return err
		}
	}
	if err := svc.MarkAllRead(ctx, ch.ID, student1.ID); err != nil {
		return err
	}

	return nil
}
