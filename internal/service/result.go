package service

// Result — структурированный итог мутирующей операции. Через границу
// сервиса ошибки валидации/предусловий/шлюза не летят паниками и не
// пробрасываются наверх: UI показывает message как есть.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Name    string `json:"name,omitempty"`
}

func failure(msg string) Result { return Result{Success: false, Message: msg} }

// UserResult — итог провижининга пользователя: временный пароль показывается
// админу один раз.
type UserResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	TempPassword string `json:"temp_password,omitempty"`
}
