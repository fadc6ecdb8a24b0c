package telegram

// Command представляет команду бота
type Command string

const (
	CmdStart Command = "start"
	CmdHelp  Command = "help"
	CmdKey   Command = "key"
	CmdStats Command = "stats"
)

func (c Command) String() string {
	return string(c)
}

func (c Command) IsValid() bool {
	switch c {
	case CmdStart, CmdHelp, CmdKey, CmdStats:
		return true
	}
	return false
}

func (c Command) IsAdminOnly() bool {
	return c == CmdStats
}

// CallbackData представляет callback данные кнопок главного меню
type CallbackData string

const (
	CallbackCreateUser CallbackData = "create_user"
	CallbackGetKey     CallbackData = "get_key"
	CallbackRenewKey   CallbackData = "renew_key"
)

func (c CallbackData) String() string {
	return string(c)
}

func (c CallbackData) IsValid() bool {
	switch c {
	case CallbackCreateUser, CallbackGetKey, CallbackRenewKey:
		return true
	}
	return false
}

// Тексты интерфейса
const (
	msgWelcome = "Привет! Я бот для работы с VPN. Выберите действие:"

	buttonCreateUser = "Создать пользователя"
	buttonGetKey     = "Получить ключ"
	buttonRenewKey   = "Продлить ключ"

	// Формат дат для пользователя
	displayDateFormat = "02.01.2006 15:04"
)
