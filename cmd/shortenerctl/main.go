// Command shortenerctl обслуживает сервис коротких ссылок: воркер очереди asynq,
// миграции, шаблоны, включение и отключение ссылок, импорт и экспорт без HTTP.
package main

func main() {
	Execute()
}
