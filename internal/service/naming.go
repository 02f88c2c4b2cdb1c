package service

import "strings"

const nameSuffix = "'s Config"

// FormatConfigName канонизирует отображаемое имя пира: префикс окружения
// ("dev:"/"prod:") и притяжательный суффикс. Идемпотентна — повторный вызов
// на собственном результате ничего не меняет. Окружение приходит явным
// параметром, а не из глобального состояния: несколько деплоев делят один
// удалённый WireGuard API, и имена должны быть самоописательными.
func FormatConfigName(env, name string) string {
	name = strings.TrimSpace(name)
	prefix := env + ":"
	if !strings.HasPrefix(name, prefix) {
		name = prefix + name
	}
	if !strings.HasSuffix(name, nameSuffix) {
		name += nameSuffix
	}
	return name
}
