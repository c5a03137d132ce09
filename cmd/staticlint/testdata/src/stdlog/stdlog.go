package stdlog

import (
	"log" // want "стандартный log запрещён, используйте zap"
)

func Print() {
	log.Println("hello")
}
