package apperrors

// Code — ключ таксономии ошибок.
// Каждый код принадлежит числовому диапазону (band) своей области:
// system=1000, auth=2000, investigation=3000, evidence=4000, sensor=5000,
// network=6000, file=7000, ui=8000, data=9000, unknown=0.
type Code string

// Коды ошибок. Числовые значения и политика по умолчанию — в codeTable.
const (
	CodeUnknown Code = "UNKNOWN_ERROR"

	// Band 1000: system, database, configuration, integration.
	CodeSystemInitializationFailed    Code = "SYSTEM_INITIALIZATION_FAILED"
	CodeSystemOutOfMemory             Code = "SYSTEM_OUT_OF_MEMORY"
	CodeSystemResourceExhausted       Code = "SYSTEM_RESOURCE_EXHAUSTED"
	CodeSystemConfigurationInvalid    Code = "SYSTEM_CONFIGURATION_INVALID"
	CodeSystemDependencyMissing       Code = "SYSTEM_DEPENDENCY_MISSING"
	CodeSystemProcessCrashed          Code = "SYSTEM_PROCESS_CRASHED"
	CodeSystemSignalReceived          Code = "SYSTEM_SIGNAL_RECEIVED"
	CodeDatabaseConnectionFailed      Code = "DATABASE_CONNECTION_FAILED"
	CodeDatabaseQueryFailed           Code = "DATABASE_QUERY_FAILED"
	CodeDatabaseCorruption            Code = "DATABASE_CORRUPTION"
	CodeIntegrationServiceUnavailable Code = "INTEGRATION_SERVICE_UNAVAILABLE"

	// Band 2000: authentication, authorization.
	CodeAuthInvalidCredentials Code = "AUTH_INVALID_CREDENTIALS"
	CodeAuthSessionExpired     Code = "AUTH_SESSION_EXPIRED"
	CodeAuthTokenInvalid       Code = "AUTH_TOKEN_INVALID"
	CodeAuthAccountLocked      Code = "AUTH_ACCOUNT_LOCKED"
	CodeAuthPermissionDenied   Code = "AUTH_PERMISSION_DENIED"

	// Band 3000: investigation.
	CodeInvestigationNotFound     Code = "INVESTIGATION_NOT_FOUND"
	CodeInvestigationAccessDenied Code = "INVESTIGATION_ACCESS_DENIED"
	CodeInvestigationStateInvalid Code = "INVESTIGATION_STATE_INVALID"
	CodeInvestigationSaveFailed   Code = "INVESTIGATION_SAVE_FAILED"

	// Band 4000: evidence.
	CodeEvidenceNotFound          Code = "EVIDENCE_NOT_FOUND"
	CodeEvidenceCorrupted         Code = "EVIDENCE_CORRUPTED"
	CodeEvidenceCustodyBroken     Code = "EVIDENCE_CHAIN_OF_CUSTODY_BROKEN"
	CodeEvidenceUploadFailed      Code = "EVIDENCE_UPLOAD_FAILED"
	CodeEvidenceFormatUnsupported Code = "EVIDENCE_FORMAT_UNSUPPORTED"

	// Band 5000: sensor.
	CodeSensorConnectionFailed    Code = "SENSOR_CONNECTION_FAILED"
	CodeSensorReadingInvalid      Code = "SENSOR_READING_INVALID"
	CodeSensorCalibrationRequired Code = "SENSOR_CALIBRATION_REQUIRED"
	CodeSensorTimeout             Code = "SENSOR_TIMEOUT"

	// Band 6000: network.
	CodeNetworkConnectionLost    Code = "NETWORK_CONNECTION_LOST"
	CodeNetworkTimeout           Code = "NETWORK_TIMEOUT"
	CodeNetworkConnectionRefused Code = "NETWORK_CONNECTION_REFUSED"
	CodeNetworkDNSFailed         Code = "NETWORK_DNS_FAILED"
	CodeNetworkRateLimited       Code = "NETWORK_RATE_LIMITED"

	// Band 7000: file system.
	CodeFileNotFound     Code = "FILE_NOT_FOUND"
	CodeFileAccessDenied Code = "FILE_ACCESS_DENIED"
	CodeFileCorrupted    Code = "FILE_CORRUPTED"
	CodeFileDiskFull     Code = "FILE_DISK_FULL"
	CodeFileWriteFailed  Code = "FILE_WRITE_FAILED"

	// Band 8000: user interface.
	CodeUIRenderFailed     Code = "UI_RENDER_FAILED"
	CodeUIComponentCrashed Code = "UI_COMPONENT_CRASHED"
	CodeUIInvalidInput     Code = "UI_INVALID_INPUT"

	// Band 9000: data.
	CodeDataParseError           Code = "DATA_PARSE_ERROR"
	CodeDataValidationFailed     Code = "DATA_VALIDATION_FAILED"
	CodeDataTransformationFailed Code = "DATA_TRANSFORMATION_FAILED"
	CodeDataExportFailed         Code = "DATA_EXPORT_FAILED"
)

// CodeInfo описывает политику по умолчанию для кода ошибки.
type CodeInfo struct {
	Code        Code
	Number      int
	Category    Category
	Severity    Severity
	Recoverable bool
	UserMessage string
	Suggestions []string
}

// codeTable — статическая таблица таксономии. Каждый код однозначно
// отображается в одну категорию и severity по умолчанию.
var codeTable = map[Code]CodeInfo{
	CodeUnknown: {CodeUnknown, 0, CategorySystem, SeverityMedium, false,
		"Произошла непредвиденная ошибка.",
		[]string{"Повторите операцию", "Если ошибка повторяется, обратитесь в поддержку"}},

	CodeSystemInitializationFailed: {CodeSystemInitializationFailed, 1001, CategorySystem, SeverityCritical, false,
		"Не удалось запустить приложение.",
		[]string{"Перезапустите приложение", "Проверьте журнал запуска"}},
	CodeSystemOutOfMemory: {CodeSystemOutOfMemory, 1002, CategorySystem, SeverityCritical, true,
		"Недостаточно памяти для выполнения операции.",
		[]string{"Закройте неиспользуемые окна и данные", "Перезапустите приложение"}},
	CodeSystemResourceExhausted: {CodeSystemResourceExhausted, 1003, CategorySystem, SeverityHigh, true,
		"Исчерпаны системные ресурсы.",
		[]string{"Подождите и повторите операцию", "Освободите системные ресурсы"}},
	CodeSystemConfigurationInvalid: {CodeSystemConfigurationInvalid, 1004, CategoryConfiguration, SeverityHigh, false,
		"Конфигурация приложения некорректна.",
		[]string{"Проверьте файл конфигурации", "Восстановите настройки по умолчанию"}},
	CodeSystemDependencyMissing: {CodeSystemDependencyMissing, 1005, CategorySystem, SeverityHigh, false,
		"Не найден обязательный компонент.",
		[]string{"Переустановите приложение"}},
	CodeSystemProcessCrashed: {CodeSystemProcessCrashed, 1006, CategorySystem, SeverityCritical, false,
		"Процесс приложения аварийно завершился.",
		[]string{"Перезапустите приложение", "Отправьте отчёт об ошибке"}},
	CodeSystemSignalReceived: {CodeSystemSignalReceived, 1007, CategorySystem, SeverityHigh, false,
		"Приложение получило сигнал завершения.",
		[]string{"Сохраните данные и перезапустите приложение"}},
	CodeDatabaseConnectionFailed: {CodeDatabaseConnectionFailed, 1101, CategoryDatabase, SeverityHigh, true,
		"Нет подключения к базе данных.",
		[]string{"Проверьте доступность сервера базы данных", "Повторите операцию"}},
	CodeDatabaseQueryFailed: {CodeDatabaseQueryFailed, 1102, CategoryDatabase, SeverityMedium, true,
		"Не удалось выполнить запрос к базе данных.",
		[]string{"Повторите операцию"}},
	CodeDatabaseCorruption: {CodeDatabaseCorruption, 1103, CategoryDatabase, SeverityCritical, false,
		"Обнаружено повреждение данных.",
		[]string{"Восстановите базу из резервной копии", "Обратитесь к администратору"}},
	CodeIntegrationServiceUnavailable: {CodeIntegrationServiceUnavailable, 1201, CategoryIntegration, SeverityHigh, true,
		"Внешний сервис недоступен.",
		[]string{"Повторите операцию позже"}},

	CodeAuthInvalidCredentials: {CodeAuthInvalidCredentials, 2001, CategoryAuthentication, SeverityMedium, false,
		"Неверное имя пользователя или пароль.",
		[]string{"Проверьте учётные данные", "Проверьте раскладку клавиатуры"}},
	CodeAuthSessionExpired: {CodeAuthSessionExpired, 2002, CategoryAuthentication, SeverityLow, true,
		"Сеанс истёк.",
		[]string{"Войдите в систему повторно"}},
	CodeAuthTokenInvalid: {CodeAuthTokenInvalid, 2003, CategoryAuthentication, SeverityMedium, true,
		"Токен доступа недействителен.",
		[]string{"Войдите в систему повторно"}},
	CodeAuthAccountLocked: {CodeAuthAccountLocked, 2004, CategoryAuthentication, SeverityHigh, false,
		"Учётная запись заблокирована.",
		[]string{"Обратитесь к администратору"}},
	CodeAuthPermissionDenied: {CodeAuthPermissionDenied, 2101, CategoryAuthorization, SeverityMedium, false,
		"Недостаточно прав для выполнения операции.",
		[]string{"Запросите доступ у администратора"}},

	CodeInvestigationNotFound: {CodeInvestigationNotFound, 3001, CategoryInvestigation, SeverityMedium, false,
		"Расследование не найдено.",
		[]string{"Проверьте идентификатор расследования", "Обновите список расследований"}},
	CodeInvestigationAccessDenied: {CodeInvestigationAccessDenied, 3002, CategoryInvestigation, SeverityMedium, false,
		"Нет доступа к расследованию.",
		[]string{"Запросите доступ у ответственного"}},
	CodeInvestigationStateInvalid: {CodeInvestigationStateInvalid, 3003, CategoryBusinessLogic, SeverityMedium, false,
		"Операция недоступна в текущем состоянии расследования.",
		[]string{"Обновите данные расследования"}},
	CodeInvestigationSaveFailed: {CodeInvestigationSaveFailed, 3004, CategoryInvestigation, SeverityHigh, true,
		"Не удалось сохранить расследование.",
		[]string{"Повторите сохранение", "Экспортируйте данные локально"}},

	CodeEvidenceNotFound: {CodeEvidenceNotFound, 4001, CategoryEvidence, SeverityMedium, false,
		"Доказательство не найдено.",
		[]string{"Проверьте идентификатор доказательства"}},
	CodeEvidenceCorrupted: {CodeEvidenceCorrupted, 4002, CategoryEvidence, SeverityCritical, false,
		"Файл доказательства повреждён.",
		[]string{"Загрузите доказательство повторно", "Проверьте контрольную сумму"}},
	CodeEvidenceCustodyBroken: {CodeEvidenceCustodyBroken, 4003, CategoryEvidence, SeverityCritical, false,
		"Нарушена цепочка хранения доказательства.",
		[]string{"Зафиксируйте инцидент", "Обратитесь к ответственному за хранение"}},
	CodeEvidenceUploadFailed: {CodeEvidenceUploadFailed, 4004, CategoryEvidence, SeverityHigh, true,
		"Не удалось загрузить доказательство.",
		[]string{"Проверьте подключение", "Повторите загрузку"}},
	CodeEvidenceFormatUnsupported: {CodeEvidenceFormatUnsupported, 4005, CategoryValidation, SeverityLow, false,
		"Формат файла не поддерживается.",
		[]string{"Преобразуйте файл в поддерживаемый формат"}},

	CodeSensorConnectionFailed: {CodeSensorConnectionFailed, 5001, CategorySensor, SeverityHigh, true,
		"Нет связи с датчиком.",
		[]string{"Проверьте подключение датчика", "Перезапустите датчик"}},
	CodeSensorReadingInvalid: {CodeSensorReadingInvalid, 5002, CategorySensor, SeverityMedium, true,
		"Получены некорректные показания датчика.",
		[]string{"Повторите измерение"}},
	CodeSensorCalibrationRequired: {CodeSensorCalibrationRequired, 5003, CategorySensor, SeverityLow, false,
		"Требуется калибровка датчика.",
		[]string{"Выполните калибровку"}},
	CodeSensorTimeout: {CodeSensorTimeout, 5004, CategorySensor, SeverityMedium, true,
		"Датчик не отвечает.",
		[]string{"Проверьте питание датчика", "Повторите операцию"}},

	CodeNetworkConnectionLost: {CodeNetworkConnectionLost, 6001, CategoryNetwork, SeverityMedium, true,
		"Потеряно сетевое соединение.",
		[]string{"Проверьте подключение к сети", "Повторите операцию"}},
	CodeNetworkTimeout: {CodeNetworkTimeout, 6002, CategoryNetwork, SeverityMedium, true,
		"Превышено время ожидания ответа.",
		[]string{"Повторите операцию", "Проверьте скорость соединения"}},
	CodeNetworkConnectionRefused: {CodeNetworkConnectionRefused, 6003, CategoryNetwork, SeverityHigh, true,
		"Сервер отклонил соединение.",
		[]string{"Проверьте адрес сервера", "Повторите операцию позже"}},
	CodeNetworkDNSFailed: {CodeNetworkDNSFailed, 6004, CategoryNetwork, SeverityMedium, true,
		"Не удалось определить адрес сервера.",
		[]string{"Проверьте настройки DNS"}},
	CodeNetworkRateLimited: {CodeNetworkRateLimited, 6005, CategoryNetwork, SeverityLow, true,
		"Слишком много запросов.",
		[]string{"Подождите и повторите операцию"}},

	CodeFileNotFound: {CodeFileNotFound, 7001, CategoryFileSystem, SeverityMedium, false,
		"Файл не найден.",
		[]string{"Проверьте путь к файлу"}},
	CodeFileAccessDenied: {CodeFileAccessDenied, 7002, CategoryFileSystem, SeverityMedium, false,
		"Нет доступа к файлу.",
		[]string{"Проверьте права доступа к файлу"}},
	CodeFileCorrupted: {CodeFileCorrupted, 7003, CategoryFileSystem, SeverityHigh, false,
		"Файл повреждён.",
		[]string{"Восстановите файл из резервной копии"}},
	CodeFileDiskFull: {CodeFileDiskFull, 7004, CategoryFileSystem, SeverityCritical, false,
		"Недостаточно места на диске.",
		[]string{"Освободите место на диске"}},
	CodeFileWriteFailed: {CodeFileWriteFailed, 7005, CategoryFileSystem, SeverityHigh, true,
		"Не удалось записать файл.",
		[]string{"Проверьте свободное место и права доступа", "Повторите операцию"}},

	CodeUIRenderFailed: {CodeUIRenderFailed, 8001, CategoryUserInterface, SeverityLow, true,
		"Не удалось отобразить элемент интерфейса.",
		[]string{"Обновите окно"}},
	CodeUIComponentCrashed: {CodeUIComponentCrashed, 8002, CategoryUserInterface, SeverityHigh, true,
		"Компонент интерфейса аварийно завершился.",
		[]string{"Перезапустите окно"}},
	CodeUIInvalidInput: {CodeUIInvalidInput, 8003, CategoryValidation, SeverityInfo, false,
		"Введены некорректные данные.",
		[]string{"Проверьте введённые значения"}},

	CodeDataParseError: {CodeDataParseError, 9001, CategoryDataProcessing, SeverityMedium, false,
		"Не удалось разобрать данные.",
		[]string{"Проверьте формат данных"}},
	CodeDataValidationFailed: {CodeDataValidationFailed, 9002, CategoryValidation, SeverityLow, false,
		"Данные не прошли проверку.",
		[]string{"Исправьте данные и повторите операцию"}},
	CodeDataTransformationFailed: {CodeDataTransformationFailed, 9003, CategoryDataProcessing, SeverityMedium, true,
		"Не удалось обработать данные.",
		[]string{"Повторите операцию"}},
	CodeDataExportFailed: {CodeDataExportFailed, 9004, CategoryDataProcessing, SeverityMedium, true,
		"Не удалось экспортировать данные.",
		[]string{"Проверьте место назначения экспорта", "Повторите экспорт"}},
}

// Lookup возвращает описание кода. Для неизвестного кода возвращает
// описание CodeUnknown и false.
func Lookup(code Code) (CodeInfo, bool) {
	info, ok := codeTable[code]
	if !ok {
		return codeTable[CodeUnknown], false
	}
	return info, true
}

// Number возвращает числовое значение кода (0 для неизвестного).
func Number(code Code) int {
	info, _ := Lookup(code)
	return info.Number
}

// Band возвращает числовой диапазон кода: 1000, 2000, ..., 9000 или 0.
func Band(code Code) int {
	return Number(code) / 1000 * 1000
}

// Codes возвращает все коды таксономии.
func Codes() []Code {
	codes := make([]Code, 0, len(codeTable))
	for code := range codeTable {
		codes = append(codes, code)
	}
	return codes
}
