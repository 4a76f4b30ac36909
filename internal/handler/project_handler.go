package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/db"
	"github.com/seevam/pathwaybuilder-sub002/internal/service"
)

type projectPayload struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Category             string   `json:"category"`
	OpenForCollaboration bool     `json:"open_for_collaboration"`
	MaxTeamSize          int      `json:"max_team_size"`
	RequiredSkills       []string `json:"required_skills"`
	WorkStyle            string   `json:"work_style"`
}

type statusPayload struct {
	Status string `json:"status"`
}

type milestonePayload struct {
	Title      string `json:"title"`
	OrderIndex int    `json:"order_index"`
	DueDate    string `json:"due_date"` // 2006-01-02，可选
}

type taskPayload struct {
	Title       string `json:"title"`
	MilestoneID *uint  `json:"milestone_id"`
	AssigneeID  *uint  `json:"assignee_id"`
}

type checkInPayload struct {
	HoursLogged float64 `json:"hours_logged"`
	MoodRating  int     `json:"mood_rating"`
	Progress    string  `json:"progress"`
	Blockers    string  `json:"blockers"`
}

type joinPayload struct {
	InviteCode string `json:"invite_code"`
}

// CreateProject 创建热情项目
func (a *API) CreateProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload projectPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}
	if strings.TrimSpace(payload.Title) == "" {
		respondError(c, http.StatusBadRequest, "项目标题不能为空")
		return
	}

	project, err := a.projects.Create(userID, projectPayloadToInput(payload))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "创建项目失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"project": projectToPayload(*project)})
}

// ListProjects 返回当前用户拥有或参与的项目
func (a *API) ListProjects(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projects, err := a.projects.ListOwned(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取项目列表失败")
		return
	}

	items := make([]gin.H, 0, len(projects))
	for _, project := range projects {
		items = append(items, projectToPayload(project))
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": items})
}

// GetProject 返回项目详情，健康分为读取时重算
func (a *API) GetProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	project, err := a.projects.Get(projectID, userID)
	if err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"project": projectToPayload(*project)})
}

// UpdateProject 更新项目基础信息
func (a *API) UpdateProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	var payload projectPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	project, err := a.projects.Update(projectID, userID, projectPayloadToInput(payload))
	if err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"project": projectToPayload(*project)})
}

// UpdateProjectStatus 推进项目生命周期
func (a *API) UpdateProjectStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	var payload statusPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	project, err := a.projects.UpdateStatus(projectID, userID, payload.Status)
	if err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"project": projectToPayload(*project)})
}

// DeleteProject 删除项目
func (a *API) DeleteProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	if err := a.projects.Delete(projectID, userID); err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"deleted": true})
}

// CreateMilestone 新增里程碑
func (a *API) CreateMilestone(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	var payload milestonePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	var duePtr *time.Time
	if strings.TrimSpace(payload.DueDate) != "" {
		due, err := time.ParseInLocation("2006-01-02", payload.DueDate, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的截止日期")
			return
		}
		duePtr = &due
	}

	milestone, err := a.projects.CreateMilestone(projectID, userID, service.MilestoneInput{
		Title:      payload.Title,
		OrderIndex: payload.OrderIndex,
		DueDate:    duePtr,
	})
	if err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"milestone": milestoneToPayload(*milestone)})
}

// ListMilestones 返回项目里程碑
func (a *API) ListMilestones(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	milestones, err := a.projects.ListMilestones(projectID, userID)
	if err != nil {
		handleProjectError(c, err)
		return
	}

	items := make([]gin.H, 0, len(milestones))
	for _, milestone := range milestones {
		items = append(items, milestoneToPayload(milestone))
	}
	respondSuccess(c, http.StatusOK, gin.H{"milestones": items})
}

// UpdateMilestoneStatus 推进里程碑状态
func (a *API) UpdateMilestoneStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	milestoneID, err := parseUintParam(c, "milestoneId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的里程碑ID")
		return
	}

	var payload statusPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	milestone, err := a.projects.UpdateMilestoneStatus(projectID, milestoneID, userID, payload.Status)
	if err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"milestone": milestoneToPayload(*milestone)})
}

// CreateTask 新增任务
func (a *API) CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	var payload taskPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	task, err := a.projects.CreateTask(projectID, userID, service.TaskInput{
		Title:       payload.Title,
		MilestoneID: payload.MilestoneID,
		AssigneeID:  payload.AssigneeID,
	})
	if err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// ListTasks 返回项目任务
func (a *API) ListTasks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	tasks, err := a.projects.ListTasks(projectID, userID)
	if err != nil {
		handleProjectError(c, err)
		return
	}

	items := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskToPayload(task))
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": items})
}

// CompleteTask 标记任务完成
func (a *API) CompleteTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的任务ID")
		return
	}

	task, err := a.projects.CompleteTask(projectID, taskID, userID)
	if err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"task": taskToPayload(*task)})
}

// CreateCheckIn 记录项目打卡
func (a *API) CreateCheckIn(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	var payload checkInPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	result, err := a.projects.CreateCheckIn(service.CheckInInput{
		ProjectID:   projectID,
		UserID:      userID,
		HoursLogged: payload.HoursLogged,
		MoodRating:  payload.MoodRating,
		Progress:    payload.Progress,
		Blockers:    payload.Blockers,
	})
	if err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"check_in":         checkInToPayload(result.CheckIn),
		"health_score":     result.HealthScore,
		"xp_award":         xpAwardToPayload(*result.XPAward),
		"new_achievements": achievementCodes(result.NewAchievements),
	})
}

// ListCheckIns 返回项目打卡历史
func (a *API) ListCheckIns(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	checkIns, err := a.projects.ListCheckIns(projectID, userID)
	if err != nil {
		handleProjectError(c, err)
		return
	}

	items := make([]gin.H, 0, len(checkIns))
	for _, checkIn := range checkIns {
		items = append(items, checkInToPayload(checkIn))
	}
	respondSuccess(c, http.StatusOK, gin.H{"check_ins": items})
}

// JoinProject 通过邀请码加入协作项目
func (a *API) JoinProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var payload joinPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	project, err := a.projects.JoinByInviteCode(userID, payload.InviteCode)
	if err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"project": projectToPayload(*project)})
}

// ListMembers 返回项目成员
func (a *API) ListMembers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	members, err := a.projects.ListMembers(projectID, userID)
	if err != nil {
		handleProjectError(c, err)
		return
	}

	items := make([]gin.H, 0, len(members))
	for _, member := range members {
		items = append(items, gin.H{
			"id":        member.ID,
			"user_id":   member.UserID,
			"role":      member.Role,
			"joined_at": member.JoinedAt.Format(dateTimeFormat),
		})
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": items})
}

// RemoveMember 移除项目成员（owner 踢出成员，或成员自行退出）
func (a *API) RemoveMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的项目ID")
		return
	}

	memberUserID, err := parseUintParam(c, "userId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的成员ID")
		return
	}

	if err := a.projects.RemoveMember(projectID, userID, memberUserID); err != nil {
		handleProjectError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"removed": true})
}

func projectPayloadToInput(payload projectPayload) service.ProjectInput {
	return service.ProjectInput{
		Title:                payload.Title,
		Description:          payload.Description,
		Category:             payload.Category,
		OpenForCollaboration: payload.OpenForCollaboration,
		MaxTeamSize:          payload.MaxTeamSize,
		RequiredSkills:       payload.RequiredSkills,
		WorkStyle:            payload.WorkStyle,
	}
}

func projectToPayload(project db.Project) gin.H {
	return gin.H{
		"id":                     project.ID,
		"title":                  project.Title,
		"description":            project.Description,
		"category":               project.Category,
		"status":                 project.Status,
		"health_score":           project.HealthScore,
		"open_for_collaboration": project.OpenForCollaboration,
		"max_team_size":          project.MaxTeamSize,
		"current_team_size":      project.CurrentTeamSize,
		"invite_code":            project.InviteCode,
		"required_skills":        project.RequiredSkills,
		"work_style":             project.WorkStyle,
		"cover_url":              project.CoverURL,
		"created_at":             project.CreatedAt.Format(dateTimeFormat),
	}
}

func milestoneToPayload(milestone db.Milestone) gin.H {
	item := gin.H{
		"id":          milestone.ID,
		"project_id":  milestone.ProjectID,
		"title":       milestone.Title,
		"order_index": milestone.OrderIndex,
		"status":      milestone.Status,
	}
	if milestone.DueDate != nil {
		item["due_date"] = milestone.DueDate.Format("2006-01-02")
	}
	return item
}

func taskToPayload(task db.Task) gin.H {
	item := gin.H{
		"id":         task.ID,
		"project_id": task.ProjectID,
		"title":      task.Title,
		"completed":  task.Completed,
	}
	if task.MilestoneID != nil {
		item["milestone_id"] = *task.MilestoneID
	}
	if task.AssigneeID != nil {
		item["assignee_id"] = *task.AssigneeID
	}
	if task.CompletedAt != nil {
		item["completed_at"] = task.CompletedAt.Format(dateTimeFormat)
	}
	return item
}

func checkInToPayload(checkIn db.ProjectCheckIn) gin.H {
	return gin.H{
		"id":           checkIn.ID,
		"project_id":   checkIn.ProjectID,
		"user_id":      checkIn.UserID,
		"hours_logged": checkIn.HoursLogged,
		"mood_rating":  checkIn.MoodRating,
		"progress":     checkIn.Progress,
		"blockers":     checkIn.Blockers,
		"created_at":   checkIn.CreatedAt.Format(dateTimeFormat),
	}
}

func handleProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		respondError(c, http.StatusNotFound, "项目不存在")
	case errors.Is(err, service.ErrMilestoneNotFound):
		respondError(c, http.StatusNotFound, "里程碑不存在")
	case errors.Is(err, service.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "任务不存在")
	case errors.Is(err, service.ErrMemberNotFound):
		respondError(c, http.StatusNotFound, "成员不存在")
	case errors.Is(err, service.ErrProjectInvalidStatus):
		respondError(c, http.StatusBadRequest, "项目状态不合法")
	case errors.Is(err, service.ErrInvalidMoodRating):
		respondError(c, http.StatusBadRequest, "心情评分应在 1-5 之间")
	case errors.Is(err, service.ErrTeamFull):
		respondError(c, http.StatusBadRequest, "项目成员已满")
	case errors.Is(err, service.ErrAlreadyMember):
		respondError(c, http.StatusBadRequest, "已是项目成员")
	case errors.Is(err, service.ErrOwnerCannotLeave):
		respondError(c, http.StatusBadRequest, "项目所有者不能退出自己的项目")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
